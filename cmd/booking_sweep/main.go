package main

import (
	"context"
	"log"
	"time"

	"stagebook/internal/app"
	"stagebook/internal/config"
)

// booking_sweep runs one completion pass and one refund pass, for cron-style
// deployments where the in-process scheduler is disabled.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close(context.Background())

	completion, err := a.Bookings.CompleteDue(ctx, cfg.Scheduler.BatchSize)
	if err != nil {
		log.Printf("completion sweep failed: %v", err)
	}
	refunds, err := a.Refunds.ProcessRefunds(ctx)
	if err != nil {
		log.Printf("refund sweep failed: %v", err)
	}

	log.Printf("booking sweep completed: due=%d completed=%d skipped=%d refunds_claimed=%d refunded=%d retried=%d failed=%d",
		completion.Due, completion.Completed, completion.Skipped,
		refunds.Claimed, refunds.Refunded, refunds.Retried, refunds.Failed)
}
