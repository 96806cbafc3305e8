package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type completeCall struct {
	jobID        string
	handle       string
	status       string
	errorMessage string
}

// stubStore implements jobs.Store for the methods the worker touches
type stubStore struct {
	mu            sync.Mutex
	completeCalls []completeCall
	completeErr   error
	staleJobs     []jobs.Job
	staleErr      error
}

func (s *stubStore) Insert(ctx context.Context, job *jobs.Job) error { return nil }

func (s *stubStore) GetByID(ctx context.Context, jobID string) (*jobs.Job, error) {
	return nil, jobs.ErrJobNotFound
}

func (s *stubStore) UpdateHandle(ctx context.Context, jobID, handle string) error { return nil }

func (s *stubStore) MarkDispatchFailed(ctx context.Context, jobID string) error { return nil }

func (s *stubStore) ResetForRetry(ctx context.Context, jobID string) error { return nil }

func (s *stubStore) CompleteDispatch(ctx context.Context, jobID, handle, status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completeCalls = append(s.completeCalls, completeCall{
		jobID:        jobID,
		handle:       handle,
		status:       status,
		errorMessage: errorMessage,
	})
	return nil
}

func (s *stubStore) FailUndispatched(ctx context.Context, jobID, reason string) error { return nil }

func (s *stubStore) ListByStatusOlderThan(ctx context.Context, status string, cutoff time.Time) ([]jobs.Job, error) {
	if s.staleErr != nil {
		return nil, s.staleErr
	}
	return s.staleJobs, nil
}

func (s *stubStore) List(ctx context.Context, filter jobs.Filter) ([]jobs.Job, error) {
	return nil, nil
}

func (s *stubStore) completed() []completeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]completeCall, len(s.completeCalls))
	copy(out, s.completeCalls)
	return out
}

type putCall struct {
	handle string
	record scheduler.ExecutionRecord
}

// fakeState records execution state writes
type fakeState struct {
	mu     sync.Mutex
	puts   []putCall
	putErr error
}

func (f *fakeState) Put(ctx context.Context, handle string, record scheduler.ExecutionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, putCall{handle: handle, record: record})
	return nil
}

func (f *fakeState) records() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]putCall, len(f.puts))
	copy(out, f.puts)
	return out
}

// fakeRedeliverer records retry requests
type fakeRedeliverer struct {
	mu          sync.Mutex
	redelivered []scheduler.Envelope
	err         error
}

func (f *fakeRedeliverer) Redeliver(ctx context.Context, env scheduler.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.redelivered = append(f.redelivered, env)
	return nil
}

func (f *fakeRedeliverer) envelopes() []scheduler.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduler.Envelope, len(f.redelivered))
	copy(out, f.redelivered)
	return out
}

type nackCall struct {
	tag     uint64
	requeue bool
}

// fakeAcknowledger captures ack/nack decisions made by the worker pool
type fakeAcknowledger struct {
	mu    sync.Mutex
	acks  []uint64
	nacks []nackCall
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, nackCall{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, nackCall{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) ackCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

func (a *fakeAcknowledger) nackCalls() []nackCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]nackCall, len(a.nacks))
	copy(out, a.nacks)
	return out
}

func newTestWorker(store jobs.Store, state *fakeState, redeliverer *fakeRedeliverer) *Worker {
	return NewWorker(&Config{
		Logger:                 testLogger(),
		Store:                  store,
		State:                  state,
		Redeliverer:            redeliverer,
		Generators:             NewRegistry(),
		Maintenance:            NewMaintenanceRegistry(),
		Concurrency:            1,
		PrefetchCount:          1,
		JobTimeout:             time.Second,
		GenerationQueue:        "genjobs.generation",
		MaintenanceQueue:       "genjobs.maintenance",
		MaintenanceMaxAttempts: 3,
	})
}
