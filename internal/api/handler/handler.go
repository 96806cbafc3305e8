package handler

import (
	"context"
	"log/slog"

	"github.com/repwise/genjobs-be/internal/jobs"
)

// JobService is the lifecycle surface the job handlers call
type JobService interface {
	Submit(ctx context.Context, userID, jobType, payload string) (*jobs.Job, error)
	Retry(ctx context.Context, jobID string) error
	GetByID(ctx context.Context, jobID string) (*jobs.Job, error)
	List(ctx context.Context, filter jobs.Filter) ([]jobs.Job, error)
}

// Sweeper runs one reconciliation pass on demand
type Sweeper interface {
	Sweep(ctx context.Context) (jobs.SweepReport, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Service  JobService
	Sweeper  Sweeper
	Postgres Pinger
	Redis    Pinger
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	service JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// AdminHandler handles operational endpoints
type AdminHandler struct {
	logger  *slog.Logger
	sweeper Sweeper
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(deps *Dependencies) *AdminHandler {
	return &AdminHandler{
		logger:  deps.Logger,
		sweeper: deps.Sweeper,
	}
}

// HealthHandler reports service health including backing stores
type HealthHandler struct {
	logger   *slog.Logger
	postgres Pinger
	redis    Pinger
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:   deps.Logger,
		postgres: deps.Postgres,
		redis:    deps.Redis,
	}
}
