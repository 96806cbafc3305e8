package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/repwise/genjobs-be/internal/jobs"
)

// JobTypeProgrammeGeneration is the job type served by the built-in generator
const JobTypeProgrammeGeneration = "programme_generation"

// renderDelay simulates the per-week rendering cost until the real
// programme engine is wired in
const renderDelay = 25 * time.Millisecond

// programmeRequest is the payload document of a programme_generation job
type programmeRequest struct {
	Goal            string `json:"goal"`
	Weeks           int    `json:"weeks"`
	SessionsPerWeek int    `json:"sessions_per_week"`
}

// NewProgrammeGenerator returns the generator for programme_generation jobs.
// It validates the request document and renders the programme week by week,
// honoring cancellation between weeks.
func NewProgrammeGenerator(logger *slog.Logger) GenerateFunc {
	return func(ctx context.Context, jobID, payload string) error {
		var req programmeRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return fmt.Errorf("invalid programme request: %w", err)
		}
		if req.Goal == "" {
			return fmt.Errorf("invalid programme request: goal is required")
		}
		if req.Weeks <= 0 {
			req.Weeks = 4
		}
		if req.SessionsPerWeek <= 0 {
			req.SessionsPerWeek = 3
		}

		sessions := 0
		for week := 1; week <= req.Weeks; week++ {
			select {
			case <-time.After(renderDelay):
				sessions += req.SessionsPerWeek
			case <-ctx.Done():
				return fmt.Errorf("generation canceled: %w", ctx.Err())
			}
		}

		logger.Info("Programme rendered",
			slog.String("job_id", jobID),
			slog.String("goal", req.Goal),
			slog.Int("weeks", req.Weeks),
			slog.Int("sessions", sessions),
		)

		return nil
	}
}

// TaskPendingBacklog is the maintenance task name for the parked-job report
const TaskPendingBacklog = "pending_backlog_report"

// NewPendingBacklogTask returns a maintenance task that reports jobs parked
// in PENDING longer than the threshold. Parked jobs only move again when a
// caller retries them, so a growing backlog means dispatch failures are
// going unnoticed.
func NewPendingBacklogTask(store jobs.Store, olderThan time.Duration, logger *slog.Logger) MaintenanceFunc {
	return func(ctx context.Context) (MaintenanceResult, error) {
		cutoff := time.Now().UTC().Add(-olderThan)

		parked, err := store.ListByStatusOlderThan(ctx, jobs.StatusPending, cutoff)
		if err != nil {
			return "", fmt.Errorf("failed to list parked jobs: %w", err)
		}

		if len(parked) == 0 {
			return MaintenanceSkipped, nil
		}

		// results are ordered oldest first
		oldest := parked[0]
		logger.Warn("Parked jobs awaiting retry",
			slog.Int("count", len(parked)),
			slog.String("oldest_job_id", oldest.JobID),
			slog.Duration("oldest_age", time.Since(oldest.UpdatedAt)),
		)

		return MaintenanceCompleted, nil
	}
}
