package hunter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Execute(t *testing.T) {
	tests := []struct {
		name            string
		maxAttempts     int
		failures        int
		failWith        func(error) error
		wantErr         bool
		wantInvocations int
	}{
		{
			name:            "success on first attempt",
			maxAttempts:     3,
			failures:        0,
			wantInvocations: 1,
		},
		{
			name:            "two transient failures then success",
			maxAttempts:     3,
			failures:        2,
			failWith:        NewTransientError,
			wantInvocations: 3,
		},
		{
			name:            "transient failures exhaust attempts",
			maxAttempts:     3,
			failures:        3,
			failWith:        NewTransientError,
			wantErr:         true,
			wantInvocations: 3,
		},
		{
			name:            "permanent error fails on first attempt",
			maxAttempts:     3,
			failures:        3,
			failWith:        NewPermanentError,
			wantErr:         true,
			wantInvocations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRetryPolicy(tt.maxAttempts, time.Millisecond)

			invocations := 0
			result, err := p.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
				invocations++
				if invocations <= tt.failures {
					return nil, tt.failWith(errors.New("source unavailable"))
				}
				return "ok", nil
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ok", result)
			}
			assert.Equal(t, tt.wantInvocations, invocations)
		})
	}
}

func TestRetryPolicy_SurfacesLastErrorUnchanged(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)

	lastErr := NewTransientError(errors.New("timeout on attempt 2"))
	attempt := 0
	_, err := p.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		attempt++
		if attempt == 1 {
			return nil, NewTransientError(errors.New("timeout on attempt 1"))
		}
		return nil, lastErr
	})

	require.Error(t, err)
	assert.Equal(t, lastErr, err)
}

func TestRetryPolicy_ContextCancelStopsBackoff(t *testing.T) {
	p := NewRetryPolicy(5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	invocations := 0

	done := make(chan error, 1)
	go func() {
		_, err := p.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			invocations++
			return nil, NewTransientError(errors.New("down"))
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, invocations)
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after context cancellation")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transient error", err: NewTransientError(errors.New("x")), want: true},
		{name: "plain error defaults to retryable", err: errors.New("x"), want: true},
		{name: "permanent error", err: NewPermanentError(errors.New("x")), want: false},
		{name: "rate limited", err: ErrRateLimited, want: false},
		{name: "circuit open", err: ErrCircuitOpen, want: false},
		{name: "agent destroyed", err: ErrAgentDestroyed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
