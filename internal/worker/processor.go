package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/internal/metrics"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

// processMessage routes a parsed envelope to the generation or maintenance
// path. A nil return acks the delivery; a RetryableError requeues it.
func (w *Worker) processMessage(ctx context.Context, env scheduler.Envelope) error {
	switch env.Kind {
	case scheduler.KindGeneration:
		return w.processGeneration(ctx, env)
	case scheduler.KindMaintenance:
		return w.processMaintenance(ctx, env)
	default:
		// parseEnvelope filters unknown kinds; keep the guard anyway
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}

// processGeneration runs a generation job and records its terminal outcome.
// Generator failures are terminal: a job is only re-run when a caller asks
// for a retry, which dispatches a fresh envelope under a new handle.
func (w *Worker) processGeneration(ctx context.Context, env scheduler.Envelope) error {
	w.logger.Info("Processing generation job",
		slog.String("job_id", env.JobID),
		slog.String("job_type", env.JobType),
		slog.String("handle", env.Handle),
	)

	generate, ok := w.generators.Lookup(env.JobType)
	if !ok {
		w.logger.Error("No generator registered for job type",
			slog.String("job_id", env.JobID),
			slog.String("job_type", env.JobType),
		)
		reason := fmt.Sprintf("no generator registered for job type %q", env.JobType)
		return w.finishGeneration(ctx, env, scheduler.StateFailed, reason)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	if genErr := generate(jobCtx, env.JobID, env.Payload); genErr != nil {
		w.logger.Error("Generation failed",
			slog.String("job_id", env.JobID),
			slog.String("job_type", env.JobType),
			slog.String("error", genErr.Error()),
		)
		return w.finishGeneration(ctx, env, scheduler.StateFailed, genErr.Error())
	}

	w.logger.Info("Generation completed",
		slog.String("job_id", env.JobID),
		slog.String("job_type", env.JobType),
	)

	return w.finishGeneration(ctx, env, scheduler.StateSucceeded, "")
}

// finishGeneration writes the terminal outcome. The execution record is the
// ground truth the sweeper consults, so a failed write requeues the delivery
// for another run. The jobs-table completion is best-effort: when it is lost,
// the sweeper repairs the job from the execution record.
func (w *Worker) finishGeneration(ctx context.Context, env scheduler.Envelope, state scheduler.State, reason string) error {
	record := scheduler.ExecutionRecord{
		JobID:   env.JobID,
		JobType: env.JobType,
		State:   state,
		Reason:  reason,
		Attempt: env.Attempt,
	}

	if err := w.state.Put(ctx, env.Handle, record); err != nil {
		return NewRetryableError(fmt.Errorf("failed to record execution outcome: %w", err))
	}

	status := jobs.StatusSucceeded
	if state == scheduler.StateFailed {
		status = jobs.StatusFailed
	}
	metrics.JobExecutions.WithLabelValues(string(state)).Inc()

	if err := w.store.CompleteDispatch(ctx, env.JobID, env.Handle, status, reason); err != nil {
		w.logger.Warn("Failed to write job completion, leaving repair to the sweep",
			slog.String("job_id", env.JobID),
			slog.String("handle", env.Handle),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// processMaintenance runs one attempt of a maintenance task. Recoverable
// failures below the attempt ceiling are handed back to the scheduler for a
// delayed redelivery; everything else ends the cycle.
func (w *Worker) processMaintenance(ctx context.Context, env scheduler.Envelope) error {
	w.logger.Info("Processing maintenance task",
		slog.String("task", env.Task),
		slog.String("handle", env.Handle),
		slog.Int("attempt", env.Attempt),
	)

	run, ok := w.maintenance.Lookup(env.Task)
	if !ok {
		w.logger.Error("No maintenance task registered",
			slog.String("task", env.Task),
		)
		metrics.MaintenanceRuns.WithLabelValues("failed").Inc()
		reason := fmt.Sprintf("no maintenance task registered for %q", env.Task)
		return w.recordMaintenance(ctx, env, scheduler.StateFailed, reason)
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, runErr := run(taskCtx)
	if runErr == nil {
		if result == MaintenanceSkipped {
			w.logger.Info("Maintenance task skipped, nothing to do",
				slog.String("task", env.Task),
			)
		} else {
			w.logger.Info("Maintenance task completed",
				slog.String("task", env.Task),
				slog.Int("attempt", env.Attempt),
			)
		}
		metrics.MaintenanceRuns.WithLabelValues(string(result)).Inc()
		return w.recordMaintenance(ctx, env, scheduler.StateSucceeded, "")
	}

	var permanentErr *PermanentError
	if errors.As(runErr, &permanentErr) || env.Attempt >= w.maintenanceMaxAttempts {
		w.logger.Error("Maintenance task failed terminally",
			slog.String("task", env.Task),
			slog.Int("attempt", env.Attempt),
			slog.Int("max_attempts", w.maintenanceMaxAttempts),
			slog.String("error", runErr.Error()),
		)
		metrics.MaintenanceRuns.WithLabelValues("failed").Inc()
		return w.recordMaintenance(ctx, env, scheduler.StateFailed, runErr.Error())
	}

	w.logger.Warn("Maintenance task failed, requesting retry",
		slog.String("task", env.Task),
		slog.Int("attempt", env.Attempt),
		slog.String("error", runErr.Error()),
	)

	if err := w.redeliverer.Redeliver(ctx, env); err != nil {
		// keep the original delivery alive so the attempt is not lost
		return NewRetryableError(fmt.Errorf("failed to request maintenance retry: %w", err))
	}

	metrics.MaintenanceRuns.WithLabelValues("retried").Inc()
	return nil
}

// recordMaintenance writes the maintenance cycle's outcome to the execution
// state store
func (w *Worker) recordMaintenance(ctx context.Context, env scheduler.Envelope, state scheduler.State, reason string) error {
	record := scheduler.ExecutionRecord{
		Task:    env.Task,
		State:   state,
		Reason:  reason,
		Attempt: env.Attempt,
	}

	if err := w.state.Put(ctx, env.Handle, record); err != nil {
		return NewRetryableError(fmt.Errorf("failed to record maintenance outcome: %w", err))
	}

	return nil
}
