package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/repwise/genjobs-be/internal/scheduler"
)

// fakeStore is an in-memory Store with the same guarded-update semantics as
// the SQL implementation, plus injectable failures per method.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*Job

	insertErr       error
	getErr          error
	updateHandleErr error
	markFailedErr   error
	resetErr        error
	completeErr     error
	undispatchedErr error
	listStaleErr    error
	listErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*Job)}
}

func (f *fakeStore) put(job Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := job
	f.jobs[job.JobID] = &cp
}

func (f *fakeStore) get(jobID string) *Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[jobID]; ok {
		cp := *j
		return &cp
	}
	return nil
}

func (f *fakeStore) Insert(_ context.Context, job *Job) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.put(*job)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, jobID string) (*Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	j := f.get(jobID)
	if j == nil {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func (f *fakeStore) UpdateHandle(_ context.Context, jobID, handle string) error {
	if f.updateHandleErr != nil {
		return f.updateHandleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.SchedulerHandle = &handle
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) MarkDispatchFailed(_ context.Context, jobID string) error {
	if f.markFailedErr != nil {
		return f.markFailedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Status != StatusProcessing || j.SchedulerHandle != nil {
		return nil
	}
	j.Status = StatusPending
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) ResetForRetry(_ context.Context, jobID string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = StatusProcessing
	j.SchedulerHandle = nil
	j.ErrorMessage = nil
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) CompleteDispatch(_ context.Context, jobID, handle, status, errorMessage string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Status != StatusProcessing || j.SchedulerHandle == nil || *j.SchedulerHandle != handle {
		return nil
	}
	j.Status = status
	if errorMessage != "" {
		msg := errorMessage
		j.ErrorMessage = &msg
	} else {
		j.ErrorMessage = nil
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) FailUndispatched(_ context.Context, jobID, reason string) error {
	if f.undispatchedErr != nil {
		return f.undispatchedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Status != StatusProcessing || j.SchedulerHandle != nil {
		return nil
	}
	j.Status = StatusFailed
	msg := reason
	j.ErrorMessage = &msg
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) ListByStatusOlderThan(_ context.Context, status string, cutoff time.Time) ([]Job, error) {
	if f.listStaleErr != nil {
		return nil, f.listStaleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Job
	for _, j := range f.jobs {
		if j.Status == status && j.UpdatedAt.Before(cutoff) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context, filter Filter) ([]Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Job
	for _, j := range f.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && j.JobType != filter.JobType {
			continue
		}
		if filter.UserID != "" && j.UserID != filter.UserID {
			continue
		}
		out = append(out, *j)
	}
	return out, nil
}

type enqueuedJob struct {
	jobID   string
	jobType string
	payload string
	handle  string
}

// fakeAdapter is a scripted scheduler.Adapter: enqueues mint sequential
// handles unless told to fail, and outcomes are looked up per handle.
type fakeAdapter struct {
	mu         sync.Mutex
	enqueueErr error
	enqueued   []enqueuedJob
	outcomes   map[string]scheduler.Outcome
	queryErrs  map[string]error
	queried    []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		outcomes:  make(map[string]scheduler.Outcome),
		queryErrs: make(map[string]error),
	}
}

func (f *fakeAdapter) Enqueue(_ context.Context, jobID, jobType, payload string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	handle := fmt.Sprintf("handle-%d", len(f.enqueued)+1)
	f.enqueued = append(f.enqueued, enqueuedJob{
		jobID:   jobID,
		jobType: jobType,
		payload: payload,
		handle:  handle,
	})
	return handle, nil
}

func (f *fakeAdapter) QueryOutcome(_ context.Context, handle string) (scheduler.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, handle)
	if err, ok := f.queryErrs[handle]; ok {
		return scheduler.Outcome{}, err
	}
	if outcome, ok := f.outcomes[handle]; ok {
		return outcome, nil
	}
	return scheduler.Outcome{State: scheduler.StateUnknown}, nil
}

func (f *fakeAdapter) enqueueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

func (f *fakeAdapter) lastEnqueued() enqueuedJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enqueued[len(f.enqueued)-1]
}
