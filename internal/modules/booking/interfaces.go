package booking

import (
	"context"
	"time"

	"stagebook/internal/domain"
	"stagebook/internal/notification"
	"stagebook/internal/repository"
)

// Ledger is the durable booking store.
type Ledger interface {
	Commit(ctx context.Context, c repository.Commit) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, f repository.ListFilter) ([]*domain.Booking, error)
	History(ctx context.Context, bookingID string) ([]domain.BookingTransition, error)
	Captures(ctx context.Context, bookingID string) ([]domain.PaymentCapture, error)
	Refunds(ctx context.Context, bookingID string) ([]domain.RefundObligation, error)
	DueForCompletion(ctx context.Context, now time.Time, limit int) ([]string, error)
	IdempotencyStore
}

type IdempotencyStore interface {
	FindIdempotency(ctx context.Context, scope string, t domain.Transition, token string) (*domain.IdempotencyRecord, error)
}

// EventPublisher is notified after every committed transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev notification.BookingEvent)
}
