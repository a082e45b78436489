package queue

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMemoryCapacity = 1024

// MemoryQueue is an in-process Queue with the same manual-ack contract as
// the AMQP-backed queue. It backs tests and broker-less deployments.
type MemoryQueue struct {
	jobs     chan Job
	pending  atomic.Int64
	inflight atomic.Int64

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a MemoryQueue holding up to capacity pending jobs.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryQueue{
		jobs: make(chan Job, capacity),
		stop: make(chan struct{}),
	}
}

// Enqueue adds a job. It fails fast when the queue is closed or full.
func (m *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-m.stop:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case m.jobs <- job:
		m.pending.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume returns a channel of deliveries. Each delivery increments the
// job's delivery count; Fail with requeue puts the job back for another
// worker.
func (m *MemoryQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case job := <-m.jobs:
				m.pending.Add(-1)
				m.inflight.Add(1)
				job.Deliveries++

				delivered := job
				d := Delivery{
					Job: delivered,
					ackFn: func() error {
						m.inflight.Add(-1)
						return nil
					},
					failFn: func(requeue bool) error {
						m.inflight.Add(-1)
						if !requeue {
							return nil
						}
						return m.Enqueue(context.Background(), delivered)
					},
				}

				select {
				case out <- d:
				case <-m.stop:
					m.inflight.Add(-1)
					return
				case <-ctx.Done():
					m.inflight.Add(-1)
					return
				}
			}
		}
	}()

	return out, nil
}

// Depth returns pending plus in-flight jobs.
func (m *MemoryQueue) Depth(ctx context.Context) (int, error) {
	return int(m.pending.Load() + m.inflight.Load()), nil
}

// Close stops consumers and rejects further enqueues. Idempotent.
func (m *MemoryQueue) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	return nil
}
