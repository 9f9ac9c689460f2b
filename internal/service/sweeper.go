package service

import (
	"context"
	"log"
	"time"
)

// Sweeper runs the abandonment sweep and the gateway backfill on a fixed
// interval. Overlapping runs are harmless: every transition is a conditional
// update, so a second pass over the same rows finds nothing to do.
type Sweeper struct {
	payments *PaymentService
	interval time.Duration
}

func NewSweeper(payments *PaymentService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{payments: payments, interval: interval}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("[SWEEP] running every %s", s.interval)
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SWEEP] stopped")
			return
		case <-tick.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := time.Now()
	if _, err := s.payments.Sweep(now); err != nil {
		log.Printf("[SWEEP] sweep: %v", err)
	}
	if _, err := s.payments.Backfill(ctx, now); err != nil {
		log.Printf("[SWEEP] backfill: %v", err)
	}
}
