// Package scheduler defines the contract between the job lifecycle engine
// and the execution backend that actually runs jobs. The lifecycle side
// only ever talks to the Adapter interface; Broker is the production
// implementation over RabbitMQ and Redis.
package scheduler

import (
	"context"
	"errors"
)

// State is the execution state of a dispatched job as the scheduler
// backend reports it.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateUnknown   State = "unknown"
)

// Outcome is the scheduler's answer to "what happened to this handle".
// Reason is set only for failed executions.
type Outcome struct {
	State  State
	Reason string
}

// Adapter is the boundary the lifecycle engine dispatches and queries
// through. Enqueue hands work to the backend and returns a tracking
// handle; QueryOutcome is read-only and safe to call any number of times.
type Adapter interface {
	Enqueue(ctx context.Context, jobID, jobType, payload string) (string, error)
	QueryOutcome(ctx context.Context, handle string) (Outcome, error)
}

var (
	// ErrMalformedHandle is returned when a handle is not a valid UUID
	ErrMalformedHandle = errors.New("malformed scheduler handle")

	// ErrSchedulerUnreachable is returned when the scheduler backend cannot be queried
	ErrSchedulerUnreachable = errors.New("scheduler unreachable")

	// ErrExecutionNotFound is returned when no execution record exists for a handle
	ErrExecutionNotFound = errors.New("execution record not found")
)

// DispatchError wraps transient enqueue failures. The job record survives
// the failure; the caller may retry the dispatch later.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return "dispatch failed: " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new dispatch error
func NewDispatchError(err error) error {
	return &DispatchError{Err: err}
}

// Envelope kinds
const (
	KindGeneration  = "generation"
	KindMaintenance = "maintenance"
)

// Routing keys on the dispatch exchange
const (
	RoutingKeyGeneration       = "generation"
	RoutingKeyMaintenance      = "maintenance"
	RoutingKeyMaintenanceRetry = "maintenance.retry"
)

// Envelope is the message published to the dispatch exchange. Generation
// envelopes carry a job id and payload; maintenance envelopes carry a task
// name. Attempt starts at 1 and is bumped by Redeliver.
type Envelope struct {
	Handle  string `json:"handle"`
	Kind    string `json:"kind"`
	JobID   string `json:"job_id,omitempty"`
	JobType string `json:"job_type,omitempty"`
	Task    string `json:"task,omitempty"`
	Payload string `json:"payload,omitempty"`
	Attempt int    `json:"attempt"`
}
