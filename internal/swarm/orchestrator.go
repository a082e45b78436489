package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huntswarm/huntswarm/internal/export"
	"github.com/huntswarm/huntswarm/internal/hunter"
	"github.com/huntswarm/huntswarm/internal/queue"
	"github.com/huntswarm/huntswarm/internal/store"
)

var (
	// ErrInvalidTarget is returned by Start when the per-type targets do not
	// sum to the configured total. No agents are created in that case.
	ErrInvalidTarget = errors.New("targets do not sum to configured total")

	// ErrNoExportSource is returned by ExportBusinesses when no record source
	// collaborator is configured.
	ErrNoExportSource = errors.New("no export record source configured")
)

// Config holds orchestrator settings. Zero fields take defaults.
type Config struct {
	TotalTarget          int
	BatchSize            int
	QueueConcurrency     int
	MaxDeliveries        int
	RequeueDelay         time.Duration
	StallCheckInterval   time.Duration
	StallAfter           time.Duration
	DegradedFailureRatio float64
	CriticalFailureRatio float64
	QueueDepthWarning    int
}

func (c *Config) withDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.QueueConcurrency <= 0 {
		c.QueueConcurrency = 10
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = time.Second
	}
	if c.StallCheckInterval <= 0 {
		c.StallCheckInterval = 30 * time.Second
	}
	if c.StallAfter <= 0 {
		c.StallAfter = 5 * time.Minute
	}
	if c.DegradedFailureRatio <= 0 {
		c.DegradedFailureRatio = 0.2
	}
	if c.CriticalFailureRatio <= 0 {
		c.CriticalFailureRatio = 0.5
	}
	if c.QueueDepthWarning <= 0 {
		c.QueueDepthWarning = 100
	}
}

// QueueFactory builds the durable queue for one agent type.
type QueueFactory func(agentType string) (queue.Queue, error)

// RecordSink receives the businesses each successful hunt discovered.
type RecordSink interface {
	SaveBusinesses(ctx context.Context, records []hunter.Record) error
}

// Orchestrator coordinates the hunter swarm: it allocates per-type worker
// shares toward the configured total target, deploys agents through the work
// queues, aggregates progress, heals stalled agents, and exposes
// scale/pause/restart/stop controls.
type Orchestrator struct {
	cfg          Config
	store        store.Store
	registry     *hunter.Registry
	agentOpts    hunter.Options
	queueFactory QueueFactory
	logger       *slog.Logger
	observers    []Observer
	exportSource export.RecordSource
	recordSink   RecordSink

	mu        sync.Mutex
	queues    map[hunter.AgentType]queue.Queue
	runners   map[hunter.AgentType]*queue.Runner
	agents    map[string]*hunter.Agent
	running   bool
	completed bool

	monitorStop chan struct{}
	monitorWG   sync.WaitGroup
}

// New creates an Orchestrator. Run starts the worker pools; Start deploys a
// target distribution. The two are separable so a control plane can deploy
// without hosting workers.
func New(cfg Config, st store.Store, registry *hunter.Registry, queueFactory QueueFactory, agentOpts hunter.Options, logger *slog.Logger, observers ...Observer) *Orchestrator {
	cfg.withDefaults()

	return &Orchestrator{
		cfg:          cfg,
		store:        st,
		registry:     registry,
		agentOpts:    agentOpts,
		queueFactory: queueFactory,
		logger:       logger,
		observers:    observers,
		queues:       make(map[hunter.AgentType]queue.Queue),
		runners:      make(map[hunter.AgentType]*queue.Runner),
		agents:       make(map[string]*hunter.Agent),
		monitorStop:  make(chan struct{}),
	}
}

// SetExportSource wires the business-record collaborator used by
// ExportBusinesses.
func (o *Orchestrator) SetExportSource(src export.RecordSource) {
	o.exportSource = src
}

// SetRecordSink wires the store that keeps discovered businesses. Without a
// sink, hunts only advance counters.
func (o *Orchestrator) SetRecordSink(sink RecordSink) {
	o.recordSink = sink
}

// Run starts one bounded worker pool per registered agent type plus the
// stall monitor, then returns. Stop tears everything down.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	// Fresh channel each run so Run after Stop gets a live monitor.
	o.monitorStop = make(chan struct{})
	monitorStop := o.monitorStop
	o.mu.Unlock()

	for _, typ := range o.registry.Types() {
		q, err := o.queueFor(typ)
		if err != nil {
			return err
		}

		runner := queue.NewRunner(queue.RunnerConfig{
			Queue:       q,
			Concurrency: o.cfg.QueueConcurrency,
			Handler:     o.handleJob,
			Retryable:   o.jobRetryable,
			OnDead:      o.handleDeadJob,
			Logger:      o.logger.With(slog.String("agent_type", string(typ))),
		})
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start runner for %s: %w", typ, err)
		}

		o.mu.Lock()
		o.runners[typ] = runner
		o.mu.Unlock()
	}

	o.monitorWG.Add(1)
	go o.runStallMonitor(ctx, monitorStop)

	o.logger.Info("Swarm orchestrator running",
		slog.Int("total_target", o.cfg.TotalTarget),
		slog.Int("queue_concurrency", o.cfg.QueueConcurrency),
	)

	return nil
}

// Start deploys a target distribution. The distribution must sum to the
// configured total target; otherwise ErrInvalidTarget is returned and no
// agents are created.
func (o *Orchestrator) Start(ctx context.Context, targets map[hunter.AgentType]int) error {
	sum := 0
	for _, target := range targets {
		if target < 0 {
			return fmt.Errorf("%w: negative target", ErrInvalidTarget)
		}
		sum += target
	}
	if sum != o.cfg.TotalTarget {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidTarget, sum, o.cfg.TotalTarget)
	}

	// Validate every type before creating anything, so a bad distribution
	// never leaves a partial deployment behind.
	types := make([]hunter.AgentType, 0, len(targets))
	for typ := range targets {
		if _, err := o.registry.NewSource(typ); err != nil {
			return fmt.Errorf("invalid target distribution: %w", err)
		}
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, typ := range types {
		remaining := targets[typ]
		for remaining > 0 {
			share := o.cfg.BatchSize
			if share > remaining {
				share = remaining
			}
			if err := o.deployAgent(ctx, typ, share); err != nil {
				return err
			}
			remaining -= share
		}
	}

	o.logger.Info("Swarm deployed",
		slog.Int("total_target", o.cfg.TotalTarget),
		slog.Int("types", len(targets)),
	)

	return nil
}

// deployAgent creates one agent record with the given target share and
// enqueues its initial job.
func (o *Orchestrator) deployAgent(ctx context.Context, typ hunter.AgentType, share int) error {
	id := uuid.New().String()
	now := time.Now()

	record := &store.AgentRecord{
		ID:             id,
		Type:           string(typ),
		Status:         store.StatusHunting,
		AssignedTarget: share,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := o.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to persist agent record: %w", err)
	}

	if err := o.enqueueWork(ctx, record, share); err != nil {
		return err
	}

	o.logger.Info("Agent deployed",
		slog.String("agent_id", id),
		slog.String("agent_type", string(typ)),
		slog.Int("assigned_target", share),
	)
	o.emit(EventAgentStarted, id, "deploy", "success")

	return nil
}

// enqueueWork enqueues one hunting job covering count records for the agent.
func (o *Orchestrator) enqueueWork(ctx context.Context, record *store.AgentRecord, count int) error {
	q, err := o.queueFor(hunter.AgentType(record.Type))
	if err != nil {
		return err
	}

	job := queue.Job{
		ID:            uuid.New().String(),
		AgentID:       record.ID,
		AgentType:     record.Type,
		Source:        record.Type,
		Batch:         count,
		MaxDeliveries: o.cfg.MaxDeliveries,
		EnqueuedAt:    time.Now(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job for agent %s: %w", record.ID, err)
	}

	return nil
}

// queueFor returns (creating if needed) the queue for an agent type.
func (o *Orchestrator) queueFor(typ hunter.AgentType) (queue.Queue, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if q, ok := o.queues[typ]; ok {
		return q, nil
	}

	q, err := o.queueFactory(string(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to create queue for %s: %w", typ, err)
	}
	o.queues[typ] = q
	return q, nil
}

// agentFor returns (creating if needed) the in-process agent for a record.
// Agents are materialized lazily from durable records, so jobs deployed by
// another process are picked up here.
func (o *Orchestrator) agentFor(record *store.AgentRecord) (*hunter.Agent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if agent, ok := o.agents[record.ID]; ok {
		return agent, nil
	}

	source, err := o.registry.NewSource(hunter.AgentType(record.Type))
	if err != nil {
		return nil, hunter.NewPermanentError(err)
	}

	agent := hunter.NewAgent(record.ID, source, o.agentOpts, o.logger, huntObserver{o})
	o.agents[record.ID] = agent
	return agent, nil
}

// huntObserver forwards per-hunt outcomes from agents into the
// orchestrator's event stream.
type huntObserver struct {
	o *Orchestrator
}

func (h huntObserver) HuntSucceeded(agentID, source string, count int, duration time.Duration) {
	h.o.emit(EventHuntSucceeded, agentID, "hunt", "success")
}

func (h huntObserver) HuntFailed(agentID, source string, err error, duration time.Duration) {
	h.o.emit(EventHuntFailed, agentID, "hunt", "failure")
}

// handleJob processes one hunting job: it runs the agent's resilient hunt,
// bumps the durable counters, and feeds follow-up work until the agent's
// share of the target is met.
func (o *Orchestrator) handleJob(ctx context.Context, job queue.Job) error {
	record, err := o.store.Get(ctx, job.AgentID)
	if err != nil {
		return hunter.NewPermanentError(fmt.Errorf("failed to load agent %s: %w", job.AgentID, err))
	}

	// Paused, failed, and completed agents do no work; restart re-enqueues.
	if record.Status != store.StatusHunting {
		o.logger.Debug("Dropping job for non-hunting agent",
			slog.String("agent_id", record.ID),
			slog.String("status", string(record.Status)),
		)
		return nil
	}

	limit := record.Remaining()
	if limit == 0 {
		return o.finishAgent(ctx, record)
	}
	if job.Batch > 0 && job.Batch < limit {
		limit = job.Batch
	}

	agent, err := o.agentFor(record)
	if err != nil {
		return err
	}

	records, err := agent.Hunt(ctx, hunter.Query{
		Source: job.Source,
		Region: job.Region,
		Limit:  limit,
	})
	if err != nil {
		if recErr := o.store.RecordError(ctx, record.ID, err.Error()); recErr != nil {
			o.logger.Error("Failed to record agent error",
				slog.String("agent_id", record.ID),
				slog.String("error", recErr.Error()),
			)
		}
		o.backOff(ctx, err)
		return err
	}

	// Persist before counting; a failed save requeues the job instead of
	// losing the records.
	if o.recordSink != nil {
		if err := o.recordSink.SaveBusinesses(ctx, records); err != nil {
			return fmt.Errorf("failed to save businesses: %w", err)
		}
	}

	n := len(records)
	if err := o.store.IncrementCounters(ctx, record.ID, n, n, n); err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}

	updated, err := o.store.Get(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("failed to reload agent %s: %w", record.ID, err)
	}

	if updated.Remaining() == 0 {
		return o.finishAgent(ctx, updated)
	}

	return o.enqueueWork(ctx, updated, updated.Remaining())
}

// finishAgent transitions an agent that met its share to completed and
// checks whether the whole swarm is done.
func (o *Orchestrator) finishAgent(ctx context.Context, record *store.AgentRecord) error {
	if err := o.store.UpdateStatus(ctx, record.ID, store.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete agent %s: %w", record.ID, err)
	}

	o.logger.Info("Agent completed its target",
		slog.String("agent_id", record.ID),
		slog.Int("collected", record.Collected),
	)
	o.emit(EventAgentCompleted, record.ID, "hunt", "success")

	o.checkCompletion(ctx)
	return nil
}

// checkCompletion fires the swarm-completed notification once the aggregate
// validated count reaches the total target.
func (o *Orchestrator) checkCompletion(ctx context.Context) {
	progress, err := o.GetProgress(ctx)
	if err != nil {
		o.logger.Error("Failed to compute progress",
			slog.String("error", err.Error()),
		)
		return
	}
	if progress.Validated < o.cfg.TotalTarget {
		return
	}

	o.mu.Lock()
	already := o.completed
	o.completed = true
	o.mu.Unlock()
	if already {
		return
	}

	o.logger.Info("Swarm completed",
		slog.Int("validated", progress.Validated),
		slog.Int("total_target", o.cfg.TotalTarget),
	)
	o.emit(EventSwarmCompleted, "swarm", "hunt", "success")
}

// jobRetryable classifies a failed job for the queue-level requeue decision.
// Rate-limit and open-circuit denials are recoverable: the job goes back on
// the queue after a delay rather than dying.
func (o *Orchestrator) jobRetryable(err error) bool {
	if errors.Is(err, hunter.ErrRateLimited) || errors.Is(err, hunter.ErrCircuitOpen) {
		return true
	}
	return hunter.IsRetryable(err)
}

// backOff delays requeueing after a recoverable denial so a rate-limited
// agent does not spin through its delivery budget.
func (o *Orchestrator) backOff(ctx context.Context, err error) {
	if !errors.Is(err, hunter.ErrRateLimited) && !errors.Is(err, hunter.ErrCircuitOpen) {
		return
	}
	select {
	case <-time.After(o.cfg.RequeueDelay):
	case <-ctx.Done():
	}
}

// handleDeadJob marks an agent failed after its job exhausted the delivery
// budget. The orchestrator process itself keeps running.
func (o *Orchestrator) handleDeadJob(job queue.Job, err error) {
	ctx := context.Background()

	if updateErr := o.store.UpdateStatus(ctx, job.AgentID, store.StatusFailed); updateErr != nil {
		o.logger.Error("Failed to mark agent failed",
			slog.String("agent_id", job.AgentID),
			slog.String("error", updateErr.Error()),
		)
	}

	o.logger.Warn("Agent marked failed after job exhausted deliveries",
		slog.String("agent_id", job.AgentID),
		slog.String("job_id", job.ID),
		slog.String("error", err.Error()),
	)
	o.emit(EventAgentErrored, job.AgentID, "hunt", "failure")
}

// ScaleHunters adjusts the number of actively hunting agents for a type.
// Scaling down idles the most recently deployed agents without discarding
// their counters; scaling up deploys new agents with a batch-sized share.
func (o *Orchestrator) ScaleHunters(ctx context.Context, typ hunter.AgentType, count int) error {
	if count < 0 {
		return fmt.Errorf("invalid agent count: %d", count)
	}
	if _, err := o.registry.NewSource(typ); err != nil {
		return err
	}

	records, err := o.store.ListByType(ctx, string(typ))
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	var active []*store.AgentRecord
	for _, record := range records {
		if record.Status == store.StatusHunting {
			active = append(active, record)
		}
	}

	switch {
	case len(active) > count:
		// Newest first; ListByType returns stable ID order and IDs are
		// random, so idle from the tail of the started-at ordering.
		sort.Slice(active, func(i, j int) bool { return active[i].StartedAt.Before(active[j].StartedAt) })
		for _, record := range active[count:] {
			if err := o.store.UpdateStatus(ctx, record.ID, store.StatusIdle); err != nil {
				return fmt.Errorf("failed to idle agent %s: %w", record.ID, err)
			}
		}
	case len(active) < count:
		for i := len(active); i < count; i++ {
			if err := o.deployAgent(ctx, typ, o.cfg.BatchSize); err != nil {
				return err
			}
		}
	}

	o.logger.Info("Hunters scaled",
		slog.String("agent_type", string(typ)),
		slog.Int("from", len(active)),
		slog.Int("to", count),
	)
	o.emit(EventAgentScaled, string(typ), "scale", "success")

	return nil
}

// PauseHunter idles a hunting agent. Pausing an idle agent is a no-op.
func (o *Orchestrator) PauseHunter(ctx context.Context, id string) error {
	record, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch record.Status {
	case store.StatusIdle:
		return nil
	case store.StatusHunting:
		if err := o.store.UpdateStatus(ctx, id, store.StatusIdle); err != nil {
			return err
		}
		o.emit(EventAgentPaused, id, "pause", "success")
		return nil
	default:
		return fmt.Errorf("cannot pause agent %s in status %s", id, record.Status)
	}
}

// RestartHunter moves an idle or failed agent back to hunting and
// re-enqueues its remaining share of the target.
func (o *Orchestrator) RestartHunter(ctx context.Context, id string) error {
	record, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if record.Status != store.StatusIdle && record.Status != store.StatusFailed {
		return fmt.Errorf("cannot restart agent %s in status %s", id, record.Status)
	}

	remaining := record.Remaining()
	if remaining == 0 {
		return o.finishAgent(ctx, record)
	}

	if err := o.store.UpdateStatus(ctx, id, store.StatusHunting); err != nil {
		return err
	}
	if err := o.enqueueWork(ctx, record, remaining); err != nil {
		return err
	}

	o.logger.Info("Agent restarted",
		slog.String("agent_id", id),
		slog.Int("remaining", remaining),
	)
	o.emit(EventAgentRestarted, id, "restart", "success")

	return nil
}

// StopSwarm idles every hunting agent, so the worker pools drop their queued
// jobs on delivery. Counters survive and RestartHunter resumes an agent.
// Worker pools keep running, which lets the control plane stop a swarm whose
// workers live in another process.
func (o *Orchestrator) StopSwarm(ctx context.Context) error {
	records, err := o.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	idled := 0
	for _, record := range records {
		if record.Status != store.StatusHunting {
			continue
		}
		if err := o.store.UpdateStatus(ctx, record.ID, store.StatusIdle); err != nil {
			return fmt.Errorf("failed to idle agent %s: %w", record.ID, err)
		}
		idled++
	}

	o.logger.Info("Swarm stopped",
		slog.Int("idled_agents", idled),
	)
	o.emit(EventSwarmStopped, "swarm", "stop", "success")

	return nil
}

// ExportBusinesses delegates serialization of discovered businesses to the
// configured export collaborator.
func (o *Orchestrator) ExportBusinesses(ctx context.Context, format string, filters export.Filters) ([]byte, error) {
	if o.exportSource == nil {
		return nil, ErrNoExportSource
	}
	return export.Export(ctx, o.exportSource, format, filters)
}

// Stop tears the swarm down: monitor, runner pools, agents, queues.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	monitorStop := o.monitorStop
	runners := o.runners
	o.runners = make(map[hunter.AgentType]*queue.Runner)
	agents := o.agents
	o.agents = make(map[string]*hunter.Agent)
	queues := o.queues
	o.queues = make(map[hunter.AgentType]queue.Queue)
	o.mu.Unlock()

	close(monitorStop)
	o.monitorWG.Wait()

	for _, runner := range runners {
		runner.Stop()
	}
	for _, agent := range agents {
		agent.Destroy()
	}
	for _, q := range queues {
		if err := q.Close(); err != nil {
			o.logger.Error("Failed to close queue",
				slog.String("error", err.Error()),
			)
		}
	}

	o.logger.Info("Swarm orchestrator stopped")
	o.emit(EventSwarmStopped, "swarm", "stop", "success")
}

// emit fans an event out to every observer.
func (o *Orchestrator) emit(eventType, resource, action, result string) {
	event := Event{
		Type:      eventType,
		Resource:  resource,
		Action:    action,
		Result:    result,
		Timestamp: time.Now(),
	}
	for _, obs := range o.observers {
		obs.Notify(event)
	}
}
