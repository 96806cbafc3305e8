package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/repwise/genjobs-be/internal/metrics"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

// Service owns job submission and retry. Jobs are persisted before they are
// dispatched, so a submission that reaches the database is never lost even
// when the scheduler is down.
type Service struct {
	store     Store
	scheduler scheduler.Adapter
	logger    *slog.Logger
}

// NewService creates a new job service
func NewService(store Store, sched scheduler.Adapter, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: sched,
		logger:    logger,
	}
}

// Submit records a new job and dispatches it to the scheduler. The record
// is inserted as PROCESSING first and the handle written after the enqueue
// succeeds; if the enqueue fails the job is parked at PENDING and the
// dispatch error returned together with the persisted job so the caller can
// retry later.
func (s *Service) Submit(ctx context.Context, userID, jobType, payload string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		JobID:     uuid.NewString(),
		UserID:    userID,
		JobType:   jobType,
		Payload:   payload,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	metrics.JobSubmissions.Inc()

	handle, err := s.scheduler.Enqueue(ctx, job.JobID, job.JobType, job.Payload)
	if err != nil {
		s.parkAfterDispatchFailure(ctx, job, err)
		return job, err
	}

	if err := s.store.UpdateHandle(ctx, job.JobID, handle); err != nil {
		// The dispatch went out but the handle write failed; the sweep will
		// repair the record once it goes stale.
		return nil, fmt.Errorf("failed to record scheduler handle: %w", err)
	}

	job.SchedulerHandle = &handle

	s.logger.Info("Job submitted",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("user_id", job.UserID),
		slog.String("handle", handle),
	)

	return job, nil
}

// Retry re-dispatches a job by id regardless of its current status. A retry
// for an unknown id is a no-op: the caller may be acting on stale
// information and there is nothing to repair.
func (s *Service) Retry(ctx context.Context, jobID string) error {
	job, err := s.store.GetByID(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		s.logger.Debug("Retry requested for unknown job, ignoring",
			slog.String("job_id", jobID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load job for retry: %w", err)
	}

	if err := s.store.ResetForRetry(ctx, job.JobID); err != nil {
		return fmt.Errorf("failed to reset job for retry: %w", err)
	}

	metrics.JobRetries.Inc()

	handle, err := s.scheduler.Enqueue(ctx, job.JobID, job.JobType, job.Payload)
	if err != nil {
		s.parkAfterDispatchFailure(ctx, job, err)
		return err
	}

	if err := s.store.UpdateHandle(ctx, job.JobID, handle); err != nil {
		return fmt.Errorf("failed to record scheduler handle: %w", err)
	}

	s.logger.Info("Job retried",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("handle", handle),
	)

	return nil
}

// GetByID returns a single job record
func (s *Service) GetByID(ctx context.Context, jobID string) (*Job, error) {
	return s.store.GetByID(ctx, jobID)
}

// List returns jobs matching the filter
func (s *Service) List(ctx context.Context, filter Filter) ([]Job, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) parkAfterDispatchFailure(ctx context.Context, job *Job, dispatchErr error) {
	metrics.DispatchFailures.Inc()

	if err := s.store.MarkDispatchFailed(ctx, job.JobID); err != nil {
		s.logger.Error("Failed to park job after dispatch failure",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	} else {
		job.Status = StatusPending
	}

	s.logger.Warn("Job dispatch failed, job parked for retry",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.Any("error", dispatchErr),
	)
}
