package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const defaultConcurrency = 10

// Handler processes one job. A nil return acks the job; an error hands the
// requeue decision to the runner.
type Handler func(ctx context.Context, job Job) error

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Queue       Queue
	Concurrency int
	Handler     Handler
	Logger      *slog.Logger

	// Retryable classifies handler errors for the requeue decision.
	// Non-retryable errors and exhausted delivery budgets go to OnDead.
	Retryable func(error) bool

	// OnDead is invoked when a job is failed permanently.
	OnDead func(job Job, err error)
}

// Runner drains one queue with a bounded pool of worker goroutines. It is
// the queue-level retry layer: failed jobs are re-enqueued whole until their
// delivery budget runs out, then failed permanently.
type Runner struct {
	queue       Queue
	concurrency int
	handler     Handler
	retryable   func(error) bool
	onDead      func(job Job, err error)
	logger      *slog.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	return &Runner{
		queue:       cfg.Queue,
		concurrency: concurrency,
		handler:     cfg.Handler,
		retryable:   retryable,
		onDead:      cfg.OnDead,
		logger:      cfg.Logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins consuming and spawns the worker pool.
func (r *Runner) Start(ctx context.Context) error {
	deliveries, err := r.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	r.logger.Info("Spawning queue worker pool",
		slog.Int("concurrency", r.concurrency),
	)

	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i, deliveries)
	}

	return nil
}

// workerLoop is the main processing loop for each worker goroutine.
func (r *Runner) workerLoop(ctx context.Context, workerNum int, deliveries <-chan Delivery) {
	defer r.wg.Done()

	logger := r.logger.With(slog.Int("worker_num", workerNum))

	for {
		select {
		case <-r.stopChan:
			logger.Debug("Queue worker stopping")
			return
		case <-ctx.Done():
			logger.Debug("Queue worker stopping - context canceled")
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Debug("Queue worker stopping - delivery channel closed")
				return
			}
			r.process(ctx, logger, d)
		}
	}
}

// process runs the handler for one delivery and settles it.
func (r *Runner) process(ctx context.Context, logger *slog.Logger, d Delivery) {
	err := r.handler(ctx, d.Job)
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			logger.Error("Failed to ACK job",
				slog.String("job_id", d.Job.ID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := r.retryable(err) && d.Job.Deliveries < d.Job.MaxDeliveries

	logger.Warn("Job processing failed",
		slog.String("job_id", d.Job.ID),
		slog.String("agent_id", d.Job.AgentID),
		slog.Int("deliveries", d.Job.Deliveries),
		slog.Int("max_deliveries", d.Job.MaxDeliveries),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if failErr := d.Fail(requeue); failErr != nil {
		logger.Error("Failed to settle job",
			slog.String("job_id", d.Job.ID),
			slog.String("error", failErr.Error()),
		)
	}

	if !requeue && r.onDead != nil {
		r.onDead(d.Job, err)
	}
}

// Stop waits for in-flight jobs to finish and stops the pool. Idempotent.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}
