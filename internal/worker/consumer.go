package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/repwise/genjobs-be/internal/scheduler"
)

// parseEnvelope decodes and validates a dispatch envelope. Anything that
// fails here can never be processed and must be dead-lettered, not requeued.
func parseEnvelope(body []byte) (scheduler.Envelope, error) {
	var env scheduler.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("invalid envelope JSON: %w", err)
	}

	if _, err := uuid.Parse(env.Handle); err != nil {
		return env, fmt.Errorf("invalid handle %q: %w", env.Handle, err)
	}

	switch env.Kind {
	case scheduler.KindGeneration:
		if env.JobID == "" {
			return env, fmt.Errorf("generation envelope missing job_id")
		}
	case scheduler.KindMaintenance:
		if env.Task == "" {
			return env, fmt.Errorf("maintenance envelope missing task")
		}
	default:
		return env, fmt.Errorf("unknown envelope kind %q", env.Kind)
	}

	if env.Attempt < 1 {
		env.Attempt = 1
	}

	return env, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches
// parsed envelopes to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, queue string, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
		slog.String("queue", queue),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled",
				slog.String("queue", queue),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed",
					slog.String("queue", queue),
				)
				return
			}

			env, err := parseEnvelope(delivery.Body)
			if err != nil {
				w.logger.Error("Failed to parse message envelope",
					slog.String("queue", queue),
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// NACK without requeue - malformed messages can never succeed
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- jobMessage{env: env, delivery: delivery}:
				w.logger.Debug("Envelope dispatched to worker pool",
					slog.String("handle", env.Handle),
					slog.String("kind", env.Kind),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching")
				// NACK with requeue so the envelope is redelivered after restart
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
