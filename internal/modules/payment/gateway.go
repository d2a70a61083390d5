package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrGatewayTimeout     = errors.New("payment gateway timeout")
	ErrGatewayDeclined    = errors.New("payment declined")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

type ChargeRequest struct {
	BookingID       string
	Amount          int64
	PaymentMethodID string
	IdempotencyKey  string
}

type ChargeResult struct {
	TransactionID string
}

type RefundRequest struct {
	BookingID      string
	Amount         int64
	TransactionID  string
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string
}

// Gateway captures and returns money. Implementations must deduplicate on
// IdempotencyKey: a repeated key returns the first result without a new charge.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

var tracer = otel.Tracer("stagebook/payment")

// Bounded puts a deadline on every gateway call and maps an expired deadline
// to ErrGatewayTimeout.
type Bounded struct {
	next    Gateway
	timeout time.Duration
}

func NewBounded(next Gateway, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bounded{next: next, timeout: timeout}
}

func (b *Bounded) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	ctx, span := tracer.Start(ctx, "payment.charge", trace.WithAttributes(
		attribute.String("booking.id", req.BookingID),
		attribute.Int64("payment.amount", req.Amount),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.next.Charge(ctx, req)
	if err != nil {
		err = classify(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ChargeResult{}, err
	}
	span.SetAttributes(attribute.String("payment.transaction_id", res.TransactionID))
	return res, nil
}

func (b *Bounded) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	ctx, span := tracer.Start(ctx, "payment.refund", trace.WithAttributes(
		attribute.String("booking.id", req.BookingID),
		attribute.Int64("payment.amount", req.Amount),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.next.Refund(ctx, req)
	if err != nil {
		err = classify(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RefundResult{}, err
	}
	return res, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrGatewayTimeout), errors.Is(err, ErrGatewayDeclined), errors.Is(err, ErrGatewayUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}
