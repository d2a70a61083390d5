package scheduler

import (
	"context"
	"sync"
	"time"

	"stagebook/internal/modules/booking"
	"stagebook/internal/modules/payment"
)

type bookingCompleter interface {
	CompleteDue(ctx context.Context, limit int) (booking.CompletionResult, error)
}

type refundProcessor interface {
	ProcessRefunds(ctx context.Context) (payment.RefundRunResult, error)
}

type Config struct {
	CompletionInterval time.Duration
	RefundInterval     time.Duration
	BatchSize          int
}

// Scheduler drives the clock-based work: completing bookings whose event has
// ended and settling refund obligations.
type Scheduler struct {
	completer bookingCompleter
	refunds   refundProcessor
	cfg       Config
	loggerf   func(format string, args ...interface{})
}

func New(completer bookingCompleter, refunds refundProcessor, cfg Config, loggerf func(format string, args ...interface{})) *Scheduler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if cfg.CompletionInterval <= 0 {
		cfg.CompletionInterval = time.Minute
	}
	if cfg.RefundInterval <= 0 {
		cfg.RefundInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Scheduler{
		completer: completer,
		refunds:   refunds,
		cfg:       cfg,
		loggerf:   loggerf,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.loggerf("level=info msg=scheduler_started completion_interval=%s refund_interval=%s",
		s.cfg.CompletionInterval, s.cfg.RefundInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.CompletionInterval, s.completeTick)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.cfg.RefundInterval, s.refundTick)
	}()
	wg.Wait()

	s.loggerf("level=info msg=scheduler_stopped")
}

// RunOnce runs each job a single time.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.completeTick(ctx)
	s.refundTick(ctx)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (s *Scheduler) completeTick(ctx context.Context) {
	if s.completer == nil {
		return
	}
	res, err := s.completer.CompleteDue(ctx, s.cfg.BatchSize)
	if err != nil {
		s.loggerf("level=error msg=completion_sweep_failed err=%v", err)
		return
	}
	if res.Due > 0 {
		s.loggerf("level=info msg=completion_sweep due=%d completed=%d skipped=%d", res.Due, res.Completed, res.Skipped)
	}
}

func (s *Scheduler) refundTick(ctx context.Context) {
	if s.refunds == nil {
		return
	}
	res, err := s.refunds.ProcessRefunds(ctx)
	if err != nil {
		s.loggerf("level=error msg=refund_run_failed err=%v", err)
		return
	}
	if res.Claimed > 0 {
		s.loggerf("level=info msg=refund_run claimed=%d refunded=%d retried=%d failed=%d",
			res.Claimed, res.Refunded, res.Retried, res.Failed)
	}
}
