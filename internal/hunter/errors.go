package hunter

import "errors"

var (
	// ErrRateLimited is returned when the agent's token bucket is empty.
	// The caller is expected to back off; the agent never queues the request.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCircuitOpen is returned while the agent's circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrAgentDestroyed is returned for any hunt attempted after Destroy.
	ErrAgentDestroyed = errors.New("agent destroyed")
)

// PermanentError wraps client-fault errors that must never be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError marks err as non-retryable.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// TransientError wraps errors that should trigger a retry or requeue.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// IsRetryable reports whether err should be retried. Permanent (client-fault)
// errors and the agent's own gate errors are not; everything else is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrAgentDestroyed) {
		return false
	}

	return true
}
