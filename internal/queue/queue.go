package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueClosed is returned when enqueueing to a closed queue.
	ErrQueueClosed = errors.New("queue closed")

	// ErrQueueFull is returned when the queue cannot accept more jobs.
	ErrQueueFull = errors.New("queue full")
)

// Job is one unit of hunting work: a single bounded pull from one source on
// behalf of one agent. Deliveries counts how many times the job has been
// handed to a worker; MaxDeliveries bounds requeueing of poison jobs.
type Job struct {
	ID            string    `json:"id"`
	AgentID       string    `json:"agent_id"`
	AgentType     string    `json:"agent_type"`
	Source        string    `json:"source"`
	Region        string    `json:"region,omitempty"`
	Batch         int       `json:"batch"`
	Deliveries    int       `json:"deliveries"`
	MaxDeliveries int       `json:"max_deliveries"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// Delivery is a job handed to a worker, with the manual acknowledgement
// handles the worker must settle exactly once.
type Delivery struct {
	Job Job

	ackFn  func() error
	failFn func(requeue bool) error
}

// Ack marks the job as successfully processed and removes it.
func (d *Delivery) Ack() error {
	return d.ackFn()
}

// Fail marks the job as failed. With requeue it is re-enqueued for another
// delivery; without, it is dropped permanently.
func (d *Delivery) Fail(requeue bool) error {
	return d.failFn(requeue)
}

// Queue transports hunting jobs to a bounded-concurrency worker pool. One
// queue exists per agent type.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Consume(ctx context.Context) (<-chan Delivery, error)
	Depth(ctx context.Context) (int, error)
	Close() error
}
