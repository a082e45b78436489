package hunter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRateLimit        = 60
	defaultRateWindow       = time.Minute
	defaultTimeout          = 30 * time.Second
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Options configures a single agent. Zero fields take defaults.
type Options struct {
	RateLimit        int           // requests admitted per window
	RateWindow       time.Duration // limiter refill interval
	Timeout          time.Duration // per-attempt deadline
	RetryAttempts    int
	RetryDelay       time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	Proxies          []string
	UseProxy         bool
}

func (o *Options) withDefaults() {
	if o.RateLimit <= 0 {
		o.RateLimit = defaultRateLimit
	}
	if o.RateWindow <= 0 {
		o.RateWindow = defaultRateWindow
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = defaultFailureThreshold
	}
	if o.Cooldown <= 0 {
		o.Cooldown = defaultCooldown
	}
}

// Observer receives the outcome of every underlying hunt execution.
// Concurrent callers collapsed by deduplication produce one notification.
type Observer interface {
	HuntSucceeded(agentID, source string, count int, duration time.Duration)
	HuntFailed(agentID, source string, err error, duration time.Duration)
}

// Agent is one concurrent discovery worker. Every hunt runs through the same
// pipeline: destroyed gate, rate limiter, circuit breaker, per-source
// deduplication, then the source operation wrapped in bounded retry.
type Agent struct {
	id        string
	typ       AgentType
	source    Source
	opts      Options
	limiter   *Limiter
	breaker   *Breaker
	dedupe    *Deduplicator
	retry     *RetryPolicy
	logger    *slog.Logger
	observers []Observer

	destroyed atomic.Bool

	proxyMu  sync.Mutex
	proxyIdx int
}

// NewAgent creates an Agent for the given source.
func NewAgent(id string, source Source, opts Options, logger *slog.Logger, observers ...Observer) *Agent {
	opts.withDefaults()

	return &Agent{
		id:        id,
		typ:       source.Type(),
		source:    source,
		opts:      opts,
		limiter:   NewLimiter(opts.RateLimit, opts.RateWindow),
		breaker:   NewBreaker(opts.FailureThreshold, opts.Cooldown),
		dedupe:    NewDeduplicator(),
		retry:     NewRetryPolicy(opts.RetryAttempts, opts.RetryDelay),
		logger:    logger.With(slog.String("agent_id", id), slog.String("agent_type", string(source.Type()))),
		observers: observers,
	}
}

// ID returns the agent's identifier.
func (a *Agent) ID() string {
	return a.id
}

// Type returns the agent's source type.
func (a *Agent) Type() AgentType {
	return a.typ
}

// Breaker exposes the agent's circuit breaker for health reporting.
func (a *Agent) Breaker() *Breaker {
	return a.breaker
}

// Hunt pulls records from the agent's source. Rate limit denials surface as
// ErrRateLimited without touching the breaker; an open breaker surfaces as
// ErrCircuitOpen without invoking the source. Concurrent hunts for the same
// source share one underlying execution.
func (a *Agent) Hunt(ctx context.Context, query Query) ([]Record, error) {
	if a.destroyed.Load() {
		return nil, ErrAgentDestroyed
	}

	if !a.limiter.Admit() {
		return nil, ErrRateLimited
	}

	if err := a.breaker.Allow(); err != nil {
		return nil, err
	}

	result, shared, err := a.dedupe.Do(query.Source, func() (interface{}, error) {
		return a.execute(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		a.logger.Debug("Hunt result shared with concurrent caller",
			slog.String("source", query.Source),
		)
	}

	return result.([]Record), nil
}

// execute runs the retry-wrapped source operation and settles the breaker
// and observers exactly once per underlying execution.
func (a *Agent) execute(ctx context.Context, query Query) (interface{}, error) {
	if a.opts.UseProxy && len(a.opts.Proxies) > 0 {
		query.Proxy = a.nextProxy()
	}

	start := time.Now()
	result, err := a.retry.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
		return a.source.Hunt(attemptCtx, query)
	})
	duration := time.Since(start)

	if err != nil {
		a.breaker.RecordFailure()
		a.logger.Warn("Hunt failed",
			slog.String("source", query.Source),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		for _, obs := range a.observers {
			obs.HuntFailed(a.id, query.Source, err, duration)
		}
		return nil, err
	}

	records := result.([]Record)
	a.breaker.RecordSuccess()
	a.logger.Debug("Hunt succeeded",
		slog.String("source", query.Source),
		slog.Int("count", len(records)),
		slog.Duration("duration", duration),
	)
	for _, obs := range a.observers {
		obs.HuntSucceeded(a.id, query.Source, len(records), duration)
	}

	return records, nil
}

// nextProxy advances the round-robin proxy index, wrapping at the end of the
// list. Assignment is cyclic and deterministic, not random.
func (a *Agent) nextProxy() string {
	a.proxyMu.Lock()
	defer a.proxyMu.Unlock()

	proxy := a.opts.Proxies[a.proxyIdx%len(a.opts.Proxies)]
	a.proxyIdx++
	return proxy
}

// Destroy tears the agent down. It is idempotent; hunts already in flight
// may finish, but every later Hunt fails with ErrAgentDestroyed.
func (a *Agent) Destroy() {
	if a.destroyed.Swap(true) {
		return
	}
	a.limiter.Reset()
	a.logger.Info("Agent destroyed")
}
