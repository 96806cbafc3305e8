// Package worker consumes dispatch envelopes from RabbitMQ, executes
// generation jobs and maintenance tasks, and records outcomes in the
// scheduler's execution state store. The jobs-table write after a
// generation run is best-effort; the reconciliation sweep repairs jobs
// whose completion write was lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/internal/scheduler"
	"github.com/repwise/genjobs-be/shared/rabbitmq"
)

// DefaultMaintenanceMaxAttempts caps how many times a failing maintenance
// task is attempted before its run is recorded as a terminal failure.
const DefaultMaintenanceMaxAttempts = 3

// ExecutionStore records execution outcomes in the scheduler's state store
type ExecutionStore interface {
	Put(ctx context.Context, handle string, record scheduler.ExecutionRecord) error
}

// Redeliverer asks the scheduler backend to deliver an envelope again after
// its backoff delay
type Redeliverer interface {
	Redeliver(ctx context.Context, env scheduler.Envelope) error
}

// Config holds worker configuration
type Config struct {
	Logger                 *slog.Logger
	RabbitClient           *rabbitmq.Client
	Store                  jobs.Store
	State                  ExecutionStore
	Redeliverer            Redeliverer
	Generators             *Registry
	Maintenance            *MaintenanceRegistry
	Concurrency            int
	PrefetchCount          int
	JobTimeout             time.Duration
	GenerationQueue        string
	MaintenanceQueue       string
	MaintenanceMaxAttempts int
}

// jobMessage pairs a parsed envelope with the delivery it arrived on so the
// worker pool can ack or nack after processing
type jobMessage struct {
	env      scheduler.Envelope
	delivery amqp.Delivery
}

// Worker is the execution backend: it drains the generation and maintenance
// queues through a shared goroutine pool.
type Worker struct {
	logger                 *slog.Logger
	rabbitClient           *rabbitmq.Client
	store                  jobs.Store
	state                  ExecutionStore
	redeliverer            Redeliverer
	generators             *Registry
	maintenance            *MaintenanceRegistry
	workerID               string
	concurrency            int
	prefetchCount          int
	jobTimeout             time.Duration
	generationQueue        string
	maintenanceQueue       string
	maintenanceMaxAttempts int
	jobsChan               chan jobMessage
	wg                     sync.WaitGroup
	stopChan               chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	maxAttempts := cfg.MaintenanceMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaintenanceMaxAttempts
	}

	return &Worker{
		logger:                 cfg.Logger,
		rabbitClient:           cfg.RabbitClient,
		store:                  cfg.Store,
		state:                  cfg.State,
		redeliverer:            cfg.Redeliverer,
		generators:             cfg.Generators,
		maintenance:            cfg.Maintenance,
		workerID:               fmt.Sprintf("worker-%s", uuid.NewString()[:8]),
		concurrency:            cfg.Concurrency,
		prefetchCount:          cfg.PrefetchCount,
		jobTimeout:             cfg.JobTimeout,
		generationQueue:        cfg.GenerationQueue,
		maintenanceQueue:       cfg.MaintenanceQueue,
		maintenanceMaxAttempts: maxAttempts,
		jobsChan:               make(chan jobMessage, cfg.Concurrency),
		stopChan:               make(chan struct{}),
	}
}

// Start begins consuming and processing envelopes. It blocks until the
// context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	if err := w.rabbitClient.Qos(w.prefetchCount); err != nil {
		return fmt.Errorf("failed to configure QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	generationDeliveries, err := w.rabbitClient.Consume(w.generationQueue, w.workerID+"-generation")
	if err != nil {
		return fmt.Errorf("failed to consume generation queue: %w", err)
	}

	maintenanceDeliveries, err := w.rabbitClient.Consume(w.maintenanceQueue, w.workerID+"-maintenance")
	if err != nil {
		return fmt.Errorf("failed to consume maintenance queue: %w", err)
	}

	w.spawnWorkerPool(ctx)

	go w.startMessageDispatcher(ctx, w.generationQueue, generationDeliveries)
	go w.startMessageDispatcher(ctx, w.maintenanceQueue, maintenanceDeliveries)

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
