package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// executionKey returns the Redis key for a handle's execution record:
// genjobs:exec:{handle}
func executionKey(handle string) string {
	return "genjobs:exec:" + handle
}

// ExecutionRecord is the scheduler backend's ground truth for one dispatch.
// Written by the Broker on enqueue and by workers on completion; read by
// QueryOutcome.
type ExecutionRecord struct {
	JobID     string    `json:"job_id,omitempty"`
	JobType   string    `json:"job_type,omitempty"`
	Task      string    `json:"task,omitempty"`
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Attempt   int       `json:"attempt"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateStore keeps execution records in Redis, one JSON value per handle.
// Records expire after the configured retention so the store does not grow
// without bound. The caller owns the Redis client lifecycle.
type StateStore struct {
	client    redis.Cmdable
	retention time.Duration
	logger    *slog.Logger
}

// NewStateStore creates a state store with the given record retention
func NewStateStore(client redis.Cmdable, retention time.Duration, logger *slog.Logger) *StateStore {
	return &StateStore{
		client:    client,
		retention: retention,
		logger:    logger,
	}
}

// Put writes the execution record for a handle, refreshing its retention
func (s *StateStore) Put(ctx context.Context, handle string, rec ExecutionRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	if err := s.client.Set(ctx, executionKey(handle), data, s.retention).Err(); err != nil {
		return fmt.Errorf("failed to write execution record: %w", err)
	}

	s.logger.Debug("Execution record written",
		slog.String("handle", handle),
		slog.String("state", string(rec.State)),
		slog.Int("attempt", rec.Attempt),
	)

	return nil
}

// Get reads the execution record for a handle. Returns ErrExecutionNotFound
// when no record exists (expired, never written, or foreign handle).
func (s *StateStore) Get(ctx context.Context, handle string) (ExecutionRecord, error) {
	data, err := s.client.Get(ctx, executionKey(handle)).Bytes()
	if err == redis.Nil {
		return ExecutionRecord{}, ErrExecutionNotFound
	}
	if err != nil {
		return ExecutionRecord{}, fmt.Errorf("failed to read execution record: %w", err)
	}

	var rec ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ExecutionRecord{}, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	return rec, nil
}

// Delete removes the execution record for a handle
func (s *StateStore) Delete(ctx context.Context, handle string) error {
	if err := s.client.Del(ctx, executionKey(handle)).Err(); err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
