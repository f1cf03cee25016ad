package worker

import (
	"context"
	"time"

	"github.com/vendora/marketplace/internal/logger"
	"go.uber.org/zap"
)

// default disbursement method for scheduled cycles
const cyclePayoutMethod = "bank_transfer"

type PayoutService interface {
	RunCycle(ctx context.Context, method string) (int, error)
}

// PayoutScheduler periodically batches eligible vendor balances into payouts
type PayoutScheduler struct {
	svc      PayoutService
	interval time.Duration
}

// NewPayoutScheduler creates new payout scheduler
func NewPayoutScheduler(svc PayoutService, interval time.Duration) *PayoutScheduler {
	return &PayoutScheduler{svc: svc, interval: interval}
}

// Run builds payouts on every tick until the context is done
func (ps *PayoutScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(ps.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("payout scheduler is done")
			return
		case <-ticker.C:
			built, err := ps.svc.RunCycle(ctx, cyclePayoutMethod)
			if err != nil {
				logger.Log.Error("error running payout cycle", zap.Error(err))
				continue
			}
			if built > 0 {
				logger.Log.Info("payout cycle complete", zap.Int("payouts", built))
			}
		}
	}
}
