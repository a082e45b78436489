package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_ProcessesAndAcks(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx := context.Background()
	processed := make(chan Job, 4)

	r := NewRunner(RunnerConfig{
		Queue:       q,
		Concurrency: 2,
		Logger:      discardLogger(),
		Handler: func(ctx context.Context, job Job) error {
			processed <- job
			return nil
		},
	})
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.NoError(t, q.Enqueue(ctx, Job{ID: "job-1", MaxDeliveries: 3}))
	require.NoError(t, q.Enqueue(ctx, Job{ID: "job-2", MaxDeliveries: 3}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case job := <-processed:
			got[job.ID] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.True(t, got["job-1"])
	assert.True(t, got["job-2"])

	require.Eventually(t, func() bool {
		depth, err := q.Depth(ctx)
		return err == nil && depth == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRunner_RetryableFailureRequeuedUntilBudgetExhausted(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx := context.Background()
	var attempts atomic.Int32
	dead := make(chan Job, 1)

	r := NewRunner(RunnerConfig{
		Queue:       q,
		Concurrency: 1,
		Logger:      discardLogger(),
		Handler: func(ctx context.Context, job Job) error {
			attempts.Add(1)
			return errors.New("source unavailable")
		},
		Retryable: func(err error) bool { return true },
		OnDead: func(job Job, err error) {
			dead <- job
		},
	})
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.NoError(t, q.Enqueue(ctx, Job{ID: "job-1", MaxDeliveries: 3}))

	select {
	case job := <-dead:
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, 3, job.Deliveries)
	case <-time.After(2 * time.Second):
		t.Fatal("job never failed permanently")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRunner_NonRetryableFailureDiesImmediately(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx := context.Background()
	var attempts atomic.Int32
	dead := make(chan Job, 1)

	r := NewRunner(RunnerConfig{
		Queue:       q,
		Concurrency: 1,
		Logger:      discardLogger(),
		Handler: func(ctx context.Context, job Job) error {
			attempts.Add(1)
			return errors.New("invalid query")
		},
		Retryable: func(err error) bool { return false },
		OnDead: func(job Job, err error) {
			dead <- job
		},
	})
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	require.NoError(t, q.Enqueue(ctx, Job{ID: "job-1", MaxDeliveries: 3}))

	select {
	case job := <-dead:
		assert.Equal(t, 1, job.Deliveries)
	case <-time.After(time.Second):
		t.Fatal("job never failed permanently")
	}
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRunner_BoundedConcurrency(t *testing.T) {
	q := NewMemoryQueue(32)
	defer q.Close()

	ctx := context.Background()
	var current, peak atomic.Int32
	var mu sync.Mutex

	r := NewRunner(RunnerConfig{
		Queue:       q,
		Concurrency: 3,
		Logger:      discardLogger(),
		Handler: func(ctx context.Context, job Job) error {
			n := current.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			current.Add(-1)
			return nil
		},
	})
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, Job{ID: "job", MaxDeliveries: 1}))
	}

	require.Eventually(t, func() bool {
		depth, err := q.Depth(ctx)
		return err == nil && depth == 0
	}, 3*time.Second, 10*time.Millisecond)

	assert.LessOrEqual(t, peak.Load(), int32(3), "worker pool must bound concurrent executions")
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	r := NewRunner(RunnerConfig{
		Queue:   q,
		Logger:  discardLogger(),
		Handler: func(ctx context.Context, job Job) error { return nil },
	})
	require.NoError(t, r.Start(context.Background()))

	r.Stop()
	r.Stop()
}
