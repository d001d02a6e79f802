package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Sismei/CreamCurrency/internal/config"
	"github.com/Sismei/CreamCurrency/internal/jobs"
	"github.com/Sismei/CreamCurrency/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.Runner
}

// New creates a scheduler with the provided job runner and schedule config
func New(runner *jobs.Runner, cfg config.SchedulerConfig) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: runner,
	}

	if _, err := c.AddFunc(cfg.CirculationSnapshot, runner.CirculationSnapshot); err != nil {
		logger.Error("Failed to register CirculationSnapshot job", "error", err)
	}
	if _, err := c.AddFunc(cfg.LeaderboardWarm, runner.LeaderboardWarm); err != nil {
		logger.Error("Failed to register LeaderboardWarm job", "error", err)
	}

	return s
}

// Start begins executing scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Scheduler stopped")
}
