package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultMaintenanceSchedule dispatches maintenance tasks once a day
const DefaultMaintenanceSchedule = "@every 24h"

// MaintenanceEnqueuer dispatches a maintenance task to the scheduler backend
type MaintenanceEnqueuer interface {
	EnqueueMaintenance(ctx context.Context, task string) (string, error)
}

// MaintenanceScheduler periodically dispatches the configured maintenance
// tasks. Each dispatch starts a fresh attempt cycle; retries within a cycle
// are the worker's business, not the scheduler's.
type MaintenanceScheduler struct {
	enqueuer MaintenanceEnqueuer
	schedule string
	tasks    []string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewMaintenanceScheduler creates a scheduler; an empty schedule falls back
// to DefaultMaintenanceSchedule.
func NewMaintenanceScheduler(enqueuer MaintenanceEnqueuer, schedule string, tasks []string, logger *slog.Logger) *MaintenanceScheduler {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	return &MaintenanceScheduler{
		enqueuer: enqueuer,
		schedule: schedule,
		tasks:    tasks,
		logger:   logger,
	}
}

// Start schedules the periodic dispatch. With no tasks configured the
// scheduler stays idle.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	if len(s.tasks) == 0 {
		s.logger.Info("No maintenance tasks configured, dispatch scheduler idle")
		return nil
	}

	c := cron.New()

	_, err := c.AddFunc(s.schedule, func() {
		for _, task := range s.tasks {
			if _, err := s.enqueuer.EnqueueMaintenance(ctx, task); err != nil {
				s.logger.Error("Failed to dispatch maintenance task",
					slog.String("task", task),
					slog.Any("error", err),
				)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance dispatch: %w", err)
	}

	c.Start()
	s.cron = c

	s.logger.Info("Maintenance dispatch scheduled",
		slog.String("schedule", s.schedule),
		slog.Any("tasks", s.tasks),
	)

	return nil
}

// Stop halts scheduling and waits for an in-flight dispatch to complete
func (s *MaintenanceScheduler) Stop() {
	if s.cron == nil {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Maintenance dispatch stopped")
}
