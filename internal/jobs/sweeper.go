package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/repwise/genjobs-be/internal/metrics"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

// DefaultStaleThreshold is how long a PROCESSING job may sit untouched
// before the sweep reconciles it against the scheduler.
const DefaultStaleThreshold = time.Hour

// SweepReport summarizes one reconciliation pass
type SweepReport struct {
	Examined     int `json:"examined"`
	Repaired     int `json:"repaired"`
	StillRunning int `json:"still_running"`
	Errors       int `json:"errors"`
}

// Sweeper reconciles stale PROCESSING jobs against the scheduler's view of
// their executions. It repairs records whose completion write was lost,
// whose dispatch crashed before the handle write, or whose execution
// vanished. Terminal jobs are never touched and a sweep pass never fails
// because of a single job.
type Sweeper struct {
	store          Store
	scheduler      scheduler.Adapter
	staleThreshold time.Duration
	logger         *slog.Logger
}

// NewSweeper creates a sweeper with the given staleness threshold; zero or
// negative falls back to DefaultStaleThreshold.
func NewSweeper(store Store, sched scheduler.Adapter, staleThreshold time.Duration, logger *slog.Logger) *Sweeper {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &Sweeper{
		store:          store,
		scheduler:      sched,
		staleThreshold: staleThreshold,
		logger:         logger,
	}
}

// Sweep runs one reconciliation pass. Only the initial stale-job listing
// can fail the pass; per-job errors are logged, counted, and skipped. The
// pass is idempotent: repaired jobs become terminal and drop out of the
// next listing, still-running ones are re-examined with the same result.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	cutoff := time.Now().UTC().Add(-s.staleThreshold)

	metrics.SweepRuns.Inc()

	stale, err := s.store.ListByStatusOlderThan(ctx, StatusProcessing, cutoff)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	report := SweepReport{Examined: len(stale)}

	for i := range stale {
		if ctx.Err() != nil {
			s.logger.Warn("Sweep interrupted",
				slog.Int("remaining", len(stale)-i),
			)
			return report, ctx.Err()
		}
		s.sweepOne(ctx, &stale[i], &report)
	}

	s.logger.Info("Sweep pass complete",
		slog.Int("examined", report.Examined),
		slog.Int("repaired", report.Repaired),
		slog.Int("still_running", report.StillRunning),
		slog.Int("errors", report.Errors),
	)

	return report, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, job *Job, report *SweepReport) {
	// Crash window between insert and handle write: the job never made it
	// to the scheduler.
	if job.SchedulerHandle == nil {
		if err := s.store.FailUndispatched(ctx, job.JobID, ReasonNotStarted); err != nil {
			report.Errors++
			metrics.SweepErrors.Inc()
			s.logger.Error("Failed to repair undispatched job",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
			return
		}
		report.Repaired++
		metrics.SweepRepairs.WithLabelValues("failed").Inc()
		s.logger.Warn("Repaired job that was never dispatched",
			slog.String("job_id", job.JobID),
		)
		return
	}

	handle := *job.SchedulerHandle

	var status, reason string
	outcome, err := s.scheduler.QueryOutcome(ctx, handle)
	switch {
	case err != nil:
		// Unreachable scheduler, malformed handle: the execution cannot be
		// confirmed, treat it like a vanished one.
		status, reason = StatusFailed, ReasonTimedOut
		s.logger.Warn("Scheduler query failed for stale job",
			slog.String("job_id", job.JobID),
			slog.String("handle", handle),
			slog.Any("error", err),
		)
	case outcome.State == scheduler.StateRunning:
		report.StillRunning++
		s.logger.Debug("Stale job still running, leaving untouched",
			slog.String("job_id", job.JobID),
			slog.String("handle", handle),
		)
		return
	case outcome.State == scheduler.StateSucceeded:
		status = StatusSucceeded
	case outcome.State == scheduler.StateFailed:
		status, reason = StatusFailed, outcome.Reason
	case outcome.State == scheduler.StateCancelled:
		status, reason = StatusFailed, ReasonCancelled
	default:
		// Unknown: the scheduler has no record of this handle.
		status, reason = StatusFailed, ReasonTimedOut
	}

	if err := s.store.CompleteDispatch(ctx, job.JobID, handle, status, reason); err != nil {
		report.Errors++
		metrics.SweepErrors.Inc()
		s.logger.Error("Failed to repair stale job",
			slog.String("job_id", job.JobID),
			slog.String("handle", handle),
			slog.Any("error", err),
		)
		return
	}

	report.Repaired++
	metrics.SweepRepairs.WithLabelValues(strings.ToLower(status)).Inc()
	s.logger.Info("Repaired stale job",
		slog.String("job_id", job.JobID),
		slog.String("handle", handle),
		slog.String("status", status),
		slog.String("reason", reason),
	)
}
