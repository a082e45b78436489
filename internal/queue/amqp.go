package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/huntswarm/huntswarm/shared/rabbitmq"
)

const deliveriesHeader = "x-deliveries"

// AMQPQueue is a durable Queue backed by one RabbitMQ queue per agent type.
// Requeued jobs are republished with an incremented delivery header so the
// count survives broker round-trips and process restarts.
type AMQPQueue struct {
	client   *rabbitmq.Client
	name     string
	prefetch int
	logger   *slog.Logger

	publish func(ctx context.Context, job Job) error // test hook overriding Enqueue
}

// NewAMQPQueue declares the named durable queue and returns a Queue over it.
func NewAMQPQueue(client *rabbitmq.Client, name string, prefetch int, logger *slog.Logger) (*AMQPQueue, error) {
	if err := client.DeclareQueue(name); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	q := &AMQPQueue{
		client:   client,
		name:     name,
		prefetch: prefetch,
		logger:   logger.With(slog.String("queue", name)),
	}
	q.publish = q.Enqueue
	return q, nil
}

// Enqueue publishes the job as a persistent JSON message.
func (q *AMQPQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	headers := amqp.Table{deliveriesHeader: int32(job.Deliveries)}
	if err := q.client.Publish(ctx, q.name, body, headers); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	q.logger.Debug("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("agent_id", job.AgentID),
	)

	return nil
}

// Consume starts consuming deliveries from the broker.
func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	consumerTag := fmt.Sprintf("%s-%s", q.name, uuid.New().String()[:8])
	messages, err := q.client.Consume(q.name, consumerTag, q.prefetch)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					q.logger.Warn("RabbitMQ delivery channel closed")
					return
				}

				d, err := q.toDelivery(msg)
				if err != nil {
					q.logger.Error("Failed to parse job message",
						slog.String("error", err.Error()),
						slog.String("body", string(msg.Body)),
					)
					// Malformed messages are dropped, not requeued.
					if nackErr := msg.Nack(false, false); nackErr != nil {
						q.logger.Error("Failed to NACK malformed message",
							slog.String("error", nackErr.Error()),
						)
					}
					continue
				}

				select {
				case out <- d:
				case <-ctx.Done():
					if nackErr := msg.Nack(false, true); nackErr != nil {
						q.logger.Error("Failed to NACK message on shutdown",
							slog.String("error", nackErr.Error()),
						)
					}
					return
				}
			}
		}
	}()

	return out, nil
}

// toDelivery parses one broker message into a Delivery. The delivery count
// carried in headers is bumped before the job reaches a worker.
func (q *AMQPQueue) toDelivery(msg amqp.Delivery) (Delivery, error) {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return Delivery{}, fmt.Errorf("invalid job JSON: %w", err)
	}
	if _, err := uuid.Parse(job.ID); err != nil {
		return Delivery{}, fmt.Errorf("invalid job id %q: %w", job.ID, err)
	}

	if count, ok := msg.Headers[deliveriesHeader].(int32); ok {
		job.Deliveries = int(count)
	}
	job.Deliveries++

	delivered := job
	return Delivery{
		Job: delivered,
		ackFn: func() error {
			return msg.Ack(false)
		},
		failFn: func(requeue bool) error {
			if !requeue {
				return msg.Nack(false, false)
			}
			// Republish with the bumped count, then ack the original so the
			// broker-side redelivery flag never resets our bookkeeping.
			if err := q.publish(context.Background(), delivered); err != nil {
				// Broker redelivery carries the stale header, so this job
				// gets one delivery beyond its budget.
				q.logger.Warn("Republish failed, falling back to broker redelivery",
					slog.String("job_id", delivered.ID),
					slog.Int("deliveries", delivered.Deliveries),
					slog.String("error", err.Error()),
				)
				return msg.Nack(false, true)
			}
			return msg.Ack(false)
		},
	}, nil
}

// Depth returns the number of ready messages on the broker.
func (q *AMQPQueue) Depth(ctx context.Context) (int, error) {
	return q.client.QueueDepth(q.name)
}

// Close is a no-op; the underlying connection is shared and closed by its
// owner.
func (q *AMQPQueue) Close() error {
	return nil
}
