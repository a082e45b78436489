package hunter

import (
	"context"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
	maxRetryDelay        = 10 * time.Second
)

// RetryPolicy retries an operation while its error is classified retryable,
// sleeping an exponentially growing, capped delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// IsRetryable overrides the default classification when set.
	IsRetryable func(error) bool
}

// NewRetryPolicy creates a RetryPolicy with the default classification.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
	}
}

// Execute runs op up to MaxAttempts times. Non-retryable errors surface on
// the first attempt; exhausting the attempts surfaces the last error
// unchanged.
func (p *RetryPolicy) Execute(ctx context.Context, op func(context.Context) (interface{}, error)) (interface{}, error) {
	classify := p.IsRetryable
	if classify == nil {
		classify = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !classify(err) || attempt == p.MaxAttempts {
			return nil, lastErr
		}

		if err := p.sleep(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// sleep waits out the backoff for the given attempt, doubling the base delay
// per attempt up to a hard cap.
func (p *RetryPolicy) sleep(ctx context.Context, attempt int) error {
	delay := p.BaseDelay << (attempt - 1)
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
