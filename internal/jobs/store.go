package jobs

import (
	"context"
	"time"
)

// Filter narrows List results. Zero-value fields are ignored.
type Filter struct {
	UserID   string
	JobType  string
	Status   string
	PageSize int
	Cursor   *Cursor
}

// Cursor marks the position after the last job of the previous page,
// ordered by (created_at, job_id) descending.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// Store is the persistence boundary for job records. Implementations must
// make the guarded writes (CompleteDispatch, FailUndispatched,
// MarkDispatchFailed) no-ops when the guard no longer holds: a stale writer
// losing the race is expected, not an error.
type Store interface {
	// Insert persists a new job record
	Insert(ctx context.Context, job *Job) error

	// GetByID returns the job or ErrJobNotFound
	GetByID(ctx context.Context, jobID string) (*Job, error)

	// UpdateHandle records the scheduler handle after a successful dispatch
	UpdateHandle(ctx context.Context, jobID, handle string) error

	// MarkDispatchFailed parks an undispatched PROCESSING job back to
	// PENDING after an enqueue failure
	MarkDispatchFailed(ctx context.Context, jobID string) error

	// ResetForRetry moves a job to PROCESSING with no handle and no error,
	// ready for re-dispatch
	ResetForRetry(ctx context.Context, jobID string) error

	// CompleteDispatch finalizes the dispatch identified by handle, guarded
	// so it cannot clobber a newer retry's dispatch cycle
	CompleteDispatch(ctx context.Context, jobID, handle, status, errorMessage string) error

	// FailUndispatched fails a PROCESSING job that never received a handle
	FailUndispatched(ctx context.Context, jobID, reason string) error

	// ListByStatusOlderThan returns jobs in the given status whose
	// updated_at is before the cutoff
	ListByStatusOlderThan(ctx context.Context, status string, cutoff time.Time) ([]Job, error)

	// List returns jobs matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]Job, error)
}
