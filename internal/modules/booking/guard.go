package booking

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"stagebook/internal/domain"
	"stagebook/internal/pkg/lock"
	"stagebook/internal/repository"
)

// Key identifies one logical intent. Scope is the booking id, or the
// requester id for create.
type Key struct {
	Scope      string
	Transition domain.Transition
	Token      string
	// Assigned is set when the caller sent no token; such keys are never cached.
	Assigned bool
}

func NewKey(scope string, t domain.Transition, token string) Key {
	if token == "" {
		return Key{Scope: scope, Transition: t, Token: uuid.NewString(), Assigned: true}
	}
	return Key{Scope: scope, Transition: t, Token: token}
}

// GatewayKey is forwarded to the payment gateway so its retries collapse onto
// the same intent.
func (k Key) GatewayKey() string {
	return k.Scope + ":" + string(k.Transition) + ":" + k.Token
}

// Guard gives at-most-once effect per Key and serializes writers per scope.
type Guard struct {
	locker   lock.Locker
	store    IdempotencyStore
	lockWait time.Duration
}

func NewGuard(locker lock.Locker, store IdempotencyStore, lockWait time.Duration) *Guard {
	if lockWait <= 0 {
		lockWait = 15 * time.Second
	}
	return &Guard{locker: locker, store: store, lockWait: lockWait}
}

// Fingerprint hashes the actor and payload of an intent with blake2b-256.
func Fingerprint(actor domain.Actor, t domain.Transition, payload any) (string, error) {
	raw, err := json.Marshal(struct {
		ActorID    string            `json:"a"`
		Role       domain.Role       `json:"r"`
		Transition domain.Transition `json:"t"`
		Payload    any               `json:"p"`
	}{actor.ID, actor.Role, t, payload})
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Lookup returns the cached booking for key, if the intent already succeeded.
func (g *Guard) Lookup(ctx context.Context, key Key, fingerprint string) (*domain.Booking, bool, error) {
	if key.Assigned {
		return nil, false, nil
	}
	rec, err := g.store.FindIdempotency(ctx, key.Scope, key.Transition, key.Token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rec.Fingerprint != fingerprint {
		return nil, false, ErrIdempotencyKeyReused
	}
	var b domain.Booking
	if err := json.Unmarshal(rec.Result, &b); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &b, true, nil
}

// Lock serializes writers of scope. A wait longer than lockWait fails with
// ErrConcurrentModification, which is safe to retry.
func (g *Guard) Lock(ctx context.Context, scope string) (func(), error) {
	wctx, cancel := context.WithTimeout(ctx, g.lockWait)
	defer cancel()

	unlock, err := g.locker.Lock(wctx, scope)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrConcurrentModification
		}
		return nil, err
	}
	return unlock, nil
}

// Record builds the cache entry committed together with the transition.
func (g *Guard) Record(key Key, fingerprint string, result *domain.Booking, now time.Time) (*domain.IdempotencyRecord, error) {
	if key.Assigned {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &domain.IdempotencyRecord{
		Scope:       key.Scope,
		Transition:  key.Transition,
		Token:       key.Token,
		Fingerprint: fingerprint,
		BookingID:   result.ID,
		Result:      raw,
		CreatedAt:   now.UTC(),
	}, nil
}
