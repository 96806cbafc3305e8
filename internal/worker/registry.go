package worker

import (
	"context"
	"sync"
)

// GenerateFunc executes a generation job. The payload is the opaque document
// persisted at submission time. A nil return means the job succeeded; any
// error becomes the job's terminal failure reason.
type GenerateFunc func(ctx context.Context, jobID, payload string) error

// Registry maps job types to their generator implementations
type Registry struct {
	mu         sync.RWMutex
	generators map[string]GenerateFunc
}

// NewRegistry creates an empty generator registry
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]GenerateFunc),
	}
}

// Register binds a generator to a job type, replacing any previous binding
func (r *Registry) Register(jobType string, fn GenerateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[jobType] = fn
}

// Lookup returns the generator for a job type
func (r *Registry) Lookup(jobType string) (GenerateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.generators[jobType]
	return fn, ok
}

// MaintenanceResult reports how a maintenance run ended
type MaintenanceResult string

const (
	// MaintenanceCompleted means the task ran and did its work
	MaintenanceCompleted MaintenanceResult = "completed"
	// MaintenanceSkipped means the task found nothing to do. A skipped run
	// is a success and consumes no retry attempt.
	MaintenanceSkipped MaintenanceResult = "skipped"
)

// MaintenanceFunc executes one attempt of a periodic maintenance task
type MaintenanceFunc func(ctx context.Context) (MaintenanceResult, error)

// MaintenanceRegistry maps task names to their implementations
type MaintenanceRegistry struct {
	mu    sync.RWMutex
	tasks map[string]MaintenanceFunc
}

// NewMaintenanceRegistry creates an empty maintenance registry
func NewMaintenanceRegistry() *MaintenanceRegistry {
	return &MaintenanceRegistry{
		tasks: make(map[string]MaintenanceFunc),
	}
}

// Register binds a maintenance task to a name, replacing any previous binding
func (r *MaintenanceRegistry) Register(task string, fn MaintenanceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task] = fn
}

// Lookup returns the maintenance task for a name
func (r *MaintenanceRegistry) Lookup(task string) (MaintenanceFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[task]
	return fn, ok
}
