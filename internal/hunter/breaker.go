package hunter

import (
	"sync"
	"time"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed indicates normal operation.
	BreakerClosed BreakerState = iota
	// BreakerOpen indicates calls fail fast without touching the source.
	BreakerOpen
	// BreakerHalfOpen indicates a single trial call is in flight.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a circuit breaker scoped to one agent instance, shared across
// every source that instance contacts. It opens after a run of consecutive
// failures and admits exactly one trial call per cooldown period.
type Breaker struct {
	mu sync.Mutex

	failureThreshold    int
	cooldown            time.Duration
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewBreaker creates a closed Breaker that opens after failureThreshold
// consecutive failures and probes again after cooldown.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            BreakerClosed,
	}
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen until the cooldown elapses, then admits a single trial call
// and moves to half-open; further calls fail until that trial settles.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case BreakerHalfOpen:
		// Trial call already admitted.
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess resets the failure count and closes the breaker if the
// half-open trial succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
}

// RecordFailure counts a failure, opening the breaker when the threshold is
// reached. A failed half-open trial reopens it and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++

	switch b.state {
	case BreakerClosed:
		if b.consecutiveFailures >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure run length.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
