package worker

import (
	"context"
	"time"

	"github.com/vendora/marketplace/internal/logger"
	"go.uber.org/zap"
)

type PaymentService interface {
	SweepStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

// PaymentSweeper abandons payments left pending past the configured window
type PaymentSweeper struct {
	svc      PaymentService
	interval time.Duration
	ttl      time.Duration
}

// NewPaymentSweeper creates new payment sweeper
func NewPaymentSweeper(svc PaymentService, interval, ttl time.Duration) *PaymentSweeper {
	return &PaymentSweeper{svc: svc, interval: interval, ttl: ttl}
}

// Run sweeps on every tick until the context is done
func (ps *PaymentSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("payment sweeper is done")
			return
		case <-ticker.C:
			swept, err := ps.svc.SweepStalePending(ctx, time.Now().Add(-ps.ttl))
			if err != nil {
				logger.Log.Error("error sweeping stale payments", zap.Error(err))
				continue
			}
			if swept > 0 {
				logger.Log.Info("abandoned stale payments", zap.Int("count", swept))
			}
		}
	}
}
