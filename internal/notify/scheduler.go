package notify

import (
	"context"
	"log/slog"
	"time"
)

// Runner is one scheduled unit of work.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Scheduler triggers a Runner on a fixed interval inside the server
// process. Deployments that use an external cron run cmd/batcher instead.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks until ctx is done. Runs never overlap: a slow run delays
// the next tick instead of stacking.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("notification scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.runner.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("notification batch failed", "err", err)
			}
		}
	}
}
