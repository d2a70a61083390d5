package payment

import (
	"context"
	"time"

	"stagebook/internal/domain"
)

type refundStore interface {
	ClaimRefunds(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.RefundObligation, error)
	MarkRefundSettled(ctx context.Context, id, refundID string, now time.Time) error
	MarkRefundRetry(ctx context.Context, id, lastErr string, maxAttempts int, now time.Time) (domain.RefundStatus, error)
}
