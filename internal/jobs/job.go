// Package jobs implements the job lifecycle engine: submission, retry, and
// the reconciliation sweep that repairs jobs whose dispatch or completion
// went wrong. Execution itself happens elsewhere; this package owns the
// durable job records and their status transitions.
package jobs

import (
	"errors"
	"time"
)

// Job status constants
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
)

// Failure reasons written by the reconciliation sweep
const (
	ReasonNotStarted = "job was not properly started"
	ReasonCancelled  = "job was cancelled"
	ReasonTimedOut   = "job timed out"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")
)

// Job is the durable record of one generation request. SchedulerHandle is
// nil between insert and a successful dispatch; ErrorMessage is set only on
// failed jobs. UpdatedAt advances on every status or handle mutation and on
// nothing else, which is what makes staleness detection work.
type Job struct {
	JobID           string    `db:"job_id" json:"job_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	JobType         string    `db:"job_type" json:"job_type"`
	Payload         string    `db:"payload" json:"payload"`
	Status          string    `db:"status" json:"status"`
	SchedulerHandle *string   `db:"scheduler_handle" json:"scheduler_handle,omitempty"`
	ErrorMessage    *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the job is in a final status
func (j *Job) Terminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}
