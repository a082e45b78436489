package hunter

import (
	"sync"
	"time"
)

// Limiter is a token bucket guarding a single agent. The bucket starts full,
// so the first burst up to capacity is admitted immediately, and refills to
// capacity once the refill interval has elapsed.
type Limiter struct {
	mu             sync.Mutex
	tokens         int
	capacity       int
	windowStart    time.Time
	refillInterval time.Duration
}

// NewLimiter creates a Limiter admitting capacity requests per refill interval.
func NewLimiter(capacity int, refillInterval time.Duration) *Limiter {
	return &Limiter{
		tokens:         capacity,
		capacity:       capacity,
		windowStart:    time.Now(),
		refillInterval: refillInterval,
	}
}

// Admit consumes a token if one is available. It never blocks: when the
// bucket is empty the request is denied immediately rather than queued.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= l.refillInterval {
		l.tokens = l.capacity
		l.windowStart = now
	}

	if l.tokens <= 0 {
		return false
	}

	l.tokens--
	return true
}

// Remaining returns the number of tokens left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// Reset refills the bucket to capacity and restarts the window.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = l.capacity
	l.windowStart = time.Now()
}
