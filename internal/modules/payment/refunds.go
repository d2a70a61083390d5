package payment

import (
	"context"
	"time"

	"stagebook/internal/domain"
)

type RefundConfig struct {
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
}

// RefundProcessor settles refund obligations recorded by cancels.
// The obligation id is the gateway idempotency key, so a refund interrupted
// after the gateway answered is not paid twice on the next claim.
type RefundProcessor struct {
	store   refundStore
	gateway Gateway
	cfg     RefundConfig
	now     func() time.Time
	loggerf func(format string, args ...interface{})
}

func NewRefundProcessor(store refundStore, gateway Gateway, cfg RefundConfig, loggerf func(format string, args ...interface{})) *RefundProcessor {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &RefundProcessor{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		now:     time.Now,
		loggerf: loggerf,
	}
}

type RefundRunResult struct {
	Claimed  int `json:"claimed"`
	Refunded int `json:"refunded"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
}

// ProcessRefunds claims one batch and settles it.
func (p *RefundProcessor) ProcessRefunds(ctx context.Context) (RefundRunResult, error) {
	var out RefundRunResult

	claimed, err := p.store.ClaimRefunds(ctx, p.now(), p.cfg.Lease, p.cfg.BatchSize)
	if err != nil {
		return out, err
	}
	out.Claimed = len(claimed)

	for _, ro := range claimed {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		res, gerr := p.gateway.Refund(ctx, RefundRequest{
			BookingID:      ro.BookingID,
			Amount:         ro.Amount,
			TransactionID:  ro.TransactionID,
			IdempotencyKey: ro.ID,
		})
		if gerr != nil {
			status, merr := p.store.MarkRefundRetry(ctx, ro.ID, gerr.Error(), p.cfg.MaxAttempts, p.now())
			if merr != nil {
				p.loggerf("level=error msg=refund_retry_mark_failed refund_id=%s booking_id=%s err=%v", ro.ID, ro.BookingID, merr)
				continue
			}
			if status == domain.RefundFailed {
				out.Failed++
				p.loggerf("level=error msg=refund_failed refund_id=%s booking_id=%s attempts=%d err=%v", ro.ID, ro.BookingID, ro.Attempts, gerr)
			} else {
				out.Retried++
				p.loggerf("level=warn msg=refund_retry refund_id=%s booking_id=%s attempts=%d err=%v", ro.ID, ro.BookingID, ro.Attempts, gerr)
			}
			continue
		}

		if err := p.store.MarkRefundSettled(ctx, ro.ID, res.RefundID, p.now()); err != nil {
			p.loggerf("level=error msg=refund_settle_mark_failed refund_id=%s booking_id=%s err=%v", ro.ID, ro.BookingID, err)
			continue
		}
		out.Refunded++
		p.loggerf("level=info msg=refund_settled refund_id=%s booking_id=%s amount=%d gateway_refund_id=%s", ro.ID, ro.BookingID, ro.Amount, res.RefundID)
	}
	return out, nil
}
