package jobs

import (
	"context"

	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/ledger"
	"github.com/Sismei/CreamCurrency/internal/logger"
)

// Runner coordinates scheduled maintenance jobs
type Runner struct {
	ledger     *ledger.Ledger
	currencies *currency.Manager
}

// NewRunner creates a runner with all dependencies
func NewRunner(l *ledger.Ledger, currencies *currency.Manager) *Runner {
	return &Runner{ledger: l, currencies: currencies}
}

// runWithRecovery wraps job execution with panic recovery
func (r *Runner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Job panicked", "job", jobName, "panic", rec)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// CirculationSnapshot logs the circulating total of every currency for
// operational review
func (r *Runner) CirculationSnapshot() {
	r.runWithRecovery("circulation_snapshot", func() {
		ctx := context.Background()
		for _, cur := range r.currencies.All() {
			total, err := r.ledger.TotalBalance(ctx, cur.ID).Wait(ctx)
			if err != nil {
				logger.Error("Failed to read circulating total", "currency", cur.ID, "error", err)
				continue
			}
			logger.Info("Circulating total", "currency", cur.ID, "total", total)
		}
	})
}

// LeaderboardWarm pre-populates the leaderboard snapshot for the primary
// currency's first page so bursts after expiry hit a warm cache
func (r *Runner) LeaderboardWarm() {
	r.runWithRecovery("leaderboard_warm", func() {
		primary := r.currencies.Primary()
		if primary == nil {
			return
		}
		ctx := context.Background()
		if _, err := r.ledger.TopBalances(ctx, primary.ID, 10, 0).Wait(ctx); err != nil {
			logger.Error("Failed to warm leaderboard", "currency", primary.ID, "error", err)
		}
	})
}
