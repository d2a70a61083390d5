package domain

import "time"

// IdempotencyRecord caches the successful result of one logical intent.
type IdempotencyRecord struct {
	Scope       string
	Transition  Transition
	Token       string
	Fingerprint string
	BookingID   string
	Result      []byte
	CreatedAt   time.Time
}
