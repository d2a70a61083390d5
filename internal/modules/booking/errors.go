package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrNotFound               = errors.New("not_found")
	ErrIdempotencyKeyReused   = errors.New("idempotency key reused with a different request")
	ErrConcurrentModification = errors.New("booking modified concurrently")
)

// FieldErrors maps json field names to the failed rule.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (e FieldErrors) Unwrap() error { return ErrValidation }
