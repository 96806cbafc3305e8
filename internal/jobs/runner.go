package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep once an hour
const DefaultSweepSchedule = "@every 1h"

// SweepRunner runs reconciliation sweeps on a cron schedule. Supports
// standard 5-field cron expressions and descriptors like "@every 30m".
type SweepRunner struct {
	sweeper  *Sweeper
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweepRunner creates a runner; an empty schedule falls back to
// DefaultSweepSchedule.
func NewSweepRunner(sweeper *Sweeper, schedule string, logger *slog.Logger) *SweepRunner {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &SweepRunner{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep. The context bounds every scheduled pass and
// stopping the runner waits for an in-flight pass to finish.
func (r *SweepRunner) Start(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(r.schedule, func() {
		if _, err := r.sweeper.Sweep(ctx); err != nil {
			r.logger.Error("Scheduled sweep failed",
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	c.Start()
	r.cron = c

	r.logger.Info("Sweep runner started",
		slog.String("schedule", r.schedule),
	)

	return nil
}

// Stop halts scheduling and waits for a running pass to complete
func (r *SweepRunner) Stop() {
	if r.cron == nil {
		return
	}

	stopCtx := r.cron.Stop()
	<-stopCtx.Done()

	r.logger.Info("Sweep runner stopped")
}
