package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/repwise/genjobs-be/shared/rabbitmq"
)

// BrokerConfig holds dispatch topology configuration
type BrokerConfig struct {
	GenerationQueue  string
	MaintenanceQueue string
	// MaintenanceRetryDelay is the base delay before a retried maintenance
	// attempt; it doubles per attempt.
	MaintenanceRetryDelay time.Duration
}

// Broker is the production Adapter: it dispatches work over RabbitMQ and
// keeps execution ground truth in the Redis state store. Handles are UUIDs
// minted at enqueue time.
type Broker struct {
	mq     *rabbitmq.Client
	state  *StateStore
	config BrokerConfig
	logger *slog.Logger
}

// Compile-time interface check
var _ Adapter = (*Broker)(nil)

// NewBroker creates a broker and declares the dispatch topology: one queue
// per envelope kind plus a consumerless retry queue that dead-letters back
// to the maintenance queue after the per-message TTL elapses.
func NewBroker(mq *rabbitmq.Client, state *StateStore, config BrokerConfig, logger *slog.Logger) (*Broker, error) {
	if config.MaintenanceRetryDelay <= 0 {
		config.MaintenanceRetryDelay = 30 * time.Second
	}

	queues := []rabbitmq.QueueConfig{
		{
			Name:       config.GenerationQueue,
			RoutingKey: RoutingKeyGeneration,
			Durable:    true,
		},
		{
			Name:       config.MaintenanceQueue,
			RoutingKey: RoutingKeyMaintenance,
			Durable:    true,
		},
		{
			Name:       config.MaintenanceQueue + ".retry",
			RoutingKey: RoutingKeyMaintenanceRetry,
			Durable:    true,
			Args: amqp.Table{
				"x-dead-letter-exchange":    mq.ExchangeName(),
				"x-dead-letter-routing-key": RoutingKeyMaintenance,
			},
		},
	}

	for _, q := range queues {
		if err := mq.DeclareQueue(q); err != nil {
			return nil, fmt.Errorf("failed to declare dispatch topology: %w", err)
		}
	}

	return &Broker{
		mq:     mq,
		state:  state,
		config: config,
		logger: logger,
	}, nil
}

// Enqueue hands a job to the scheduler backend. It records a running
// execution first, then publishes the dispatch envelope; a publish failure
// cleans up the record and surfaces as a DispatchError so the caller can
// retry later.
func (b *Broker) Enqueue(ctx context.Context, jobID, jobType, payload string) (string, error) {
	handle := uuid.NewString()

	rec := ExecutionRecord{
		JobID:   jobID,
		JobType: jobType,
		State:   StateRunning,
		Attempt: 1,
	}
	if err := b.state.Put(ctx, handle, rec); err != nil {
		return "", NewDispatchError(err)
	}

	env := Envelope{
		Handle:  handle,
		Kind:    KindGeneration,
		JobID:   jobID,
		JobType: jobType,
		Payload: payload,
		Attempt: 1,
	}

	if err := b.publish(ctx, RoutingKeyGeneration, env, 0); err != nil {
		if delErr := b.state.Delete(ctx, handle); delErr != nil {
			b.logger.Warn("Failed to clean up execution record after publish failure",
				slog.String("handle", handle),
				slog.Any("error", delErr),
			)
		}
		return "", NewDispatchError(err)
	}

	b.logger.Info("Job dispatched to scheduler",
		slog.String("job_id", jobID),
		slog.String("job_type", jobType),
		slog.String("handle", handle),
	)

	return handle, nil
}

// QueryOutcome reports the execution state for a handle. A missing record
// maps to Unknown; an unparseable handle fails with ErrMalformedHandle and
// an unreachable backend with ErrSchedulerUnreachable.
func (b *Broker) QueryOutcome(ctx context.Context, handle string) (Outcome, error) {
	if _, err := uuid.Parse(handle); err != nil {
		return Outcome{}, ErrMalformedHandle
	}

	rec, err := b.state.Get(ctx, handle)
	if errors.Is(err, ErrExecutionNotFound) {
		return Outcome{State: StateUnknown}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrSchedulerUnreachable, err)
	}

	switch rec.State {
	case StateRunning, StateSucceeded, StateCancelled:
		return Outcome{State: rec.State}, nil
	case StateFailed:
		return Outcome{State: StateFailed, Reason: rec.Reason}, nil
	default:
		return Outcome{State: StateUnknown}, nil
	}
}

// EnqueueMaintenance dispatches a maintenance task envelope with attempt 1
func (b *Broker) EnqueueMaintenance(ctx context.Context, task string) (string, error) {
	handle := uuid.NewString()

	rec := ExecutionRecord{
		Task:    task,
		State:   StateRunning,
		Attempt: 1,
	}
	if err := b.state.Put(ctx, handle, rec); err != nil {
		return "", NewDispatchError(err)
	}

	env := Envelope{
		Handle:  handle,
		Kind:    KindMaintenance,
		Task:    task,
		Attempt: 1,
	}

	if err := b.publish(ctx, RoutingKeyMaintenance, env, 0); err != nil {
		if delErr := b.state.Delete(ctx, handle); delErr != nil {
			b.logger.Warn("Failed to clean up execution record after publish failure",
				slog.String("handle", handle),
				slog.Any("error", delErr),
			)
		}
		return "", NewDispatchError(err)
	}

	b.logger.Info("Maintenance task dispatched",
		slog.String("task", task),
		slog.String("handle", handle),
	)

	return handle, nil
}

// Redeliver requests another attempt of a maintenance envelope. The message
// goes to the retry queue with a TTL and dead-letters back to the
// maintenance queue once the backoff elapses.
func (b *Broker) Redeliver(ctx context.Context, env Envelope) error {
	delay := b.retryDelay(env.Attempt)

	next := env
	next.Attempt = env.Attempt + 1

	rec, err := b.state.Get(ctx, env.Handle)
	if err != nil {
		b.logger.Warn("Failed to read execution record before redelivery",
			slog.String("handle", env.Handle),
			slog.Any("error", err),
		)
		rec = ExecutionRecord{Task: env.Task, JobID: env.JobID, JobType: env.JobType}
	}
	rec.State = StateRunning
	rec.Attempt = next.Attempt
	if err := b.state.Put(ctx, env.Handle, rec); err != nil {
		b.logger.Warn("Failed to bump attempt on execution record",
			slog.String("handle", env.Handle),
			slog.Any("error", err),
		)
	}

	if err := b.publish(ctx, RoutingKeyMaintenanceRetry, next, delay); err != nil {
		return fmt.Errorf("failed to redeliver maintenance task: %w", err)
	}

	b.logger.Info("Maintenance task scheduled for retry",
		slog.String("task", env.Task),
		slog.String("handle", env.Handle),
		slog.Int("next_attempt", next.Attempt),
		slog.Duration("delay", delay),
	)

	return nil
}

// retryDelay doubles the base delay per completed attempt
func (b *Broker) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(b.config.MaintenanceRetryDelay) * float64(uint(1)<<uint(attempt-1)))
}

func (b *Broker) publish(ctx context.Context, routingKey string, env Envelope, expiration time.Duration) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return b.mq.PublishWithRetry(ctx, routingKey, rabbitmq.Message{
		MessageID:  env.Handle,
		Body:       body,
		Expiration: expiration,
	})
}
