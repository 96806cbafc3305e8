// Package storage implements the jobs.Store interface on PostgreSQL. All
// lifecycle transitions are single guarded UPDATEs so concurrent writers
// (submit, retry, sweep, worker callbacks) cannot corrupt each other: a
// writer whose guard no longer holds simply affects zero rows.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/shared/postgresql"
)

const jobColumns = `job_id, user_id, job_type, payload, status, scheduler_handle, error_message, created_at, updated_at`

// Storage handles all database operations for job records
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Compile-time interface check
var _ jobs.Store = (*Storage)(nil)

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Insert persists a new job record
func (s *Storage) Insert(ctx context.Context, job *jobs.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.JobType,
		job.Payload,
		job.Status,
		job.SchedulerHandle,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID
func (s *Storage) GetByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE job_id = $1
	`

	var job jobs.Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateHandle records the scheduler handle after a successful dispatch
func (s *Storage) UpdateHandle(ctx context.Context, jobID, handle string) error {
	query := `
		UPDATE jobs
		SET scheduler_handle = $2,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	result, err := s.db.ExecContext(ctx, query, jobID, handle)
	if err != nil {
		return fmt.Errorf("failed to update scheduler handle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return jobs.ErrJobNotFound
	}

	return nil
}

// MarkDispatchFailed parks an undispatched PROCESSING job back to PENDING.
// Guarded so it cannot demote a job whose dispatch actually went out.
func (s *Storage) MarkDispatchFailed(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    updated_at = NOW()
		WHERE job_id = $1
		  AND status = $3
		  AND scheduler_handle IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, jobID, jobs.StatusPending, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark dispatch failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Warn("Park after dispatch failure affected no rows",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ResetForRetry moves a job to PROCESSING with no handle and no error
func (s *Storage) ResetForRetry(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    scheduler_handle = NULL,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	result, err := s.db.ExecContext(ctx, query, jobID, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to reset job for retry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return jobs.ErrJobNotFound
	}

	return nil
}

// CompleteDispatch finalizes the dispatch identified by handle. The guard on
// (handle, PROCESSING) makes stale writers lose quietly: a sweep holding an
// old snapshot cannot clobber a job that was retried under a new handle.
func (s *Storage) CompleteDispatch(ctx context.Context, jobID, handle, status, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $3,
		    error_message = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE job_id = $1
		  AND scheduler_handle = $2
		  AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query, jobID, handle, status, errorMessage, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete dispatch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Debug("Completion write affected no rows, job moved on",
			slog.String("job_id", jobID),
			slog.String("handle", handle),
			slog.String("status", status),
		)
		return nil
	}

	s.logger.Info("Job dispatch completed",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}

// FailUndispatched fails a PROCESSING job that never received a handle
func (s *Storage) FailUndispatched(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    error_message = $3,
		    updated_at = NOW()
		WHERE job_id = $1
		  AND status = $4
		  AND scheduler_handle IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, jobID, jobs.StatusFailed, reason, jobs.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail undispatched job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Debug("Undispatched repair affected no rows, job moved on",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ListByStatusOlderThan returns jobs in the given status whose updated_at
// is before the cutoff, oldest first
func (s *Storage) ListByStatusOlderThan(ctx context.Context, status string, cutoff time.Time) ([]jobs.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		  AND updated_at < $2
		ORDER BY updated_at ASC
	`

	var out []jobs.Job
	if err := s.db.SelectContext(ctx, &out, query, status, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	return out, nil
}

// List returns jobs matching the filter, newest first, using cursor
// pagination on (created_at, job_id)
func (s *Storage) List(ctx context.Context, filter jobs.Filter) ([]jobs.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var out []jobs.Job
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return out, nil
}
