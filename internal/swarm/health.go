package swarm

import (
	"context"
	"fmt"

	"github.com/huntswarm/huntswarm/internal/store"
)

// HealthState grades the swarm's condition.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthCritical HealthState = "critical"
)

// Health is the aggregated system health report.
type Health struct {
	State        HealthState `json:"state"`
	ActiveAgents int         `json:"active_agents"`
	IdleAgents   int         `json:"idle_agents"`
	FailedAgents int         `json:"failed_agents"`
	QueueDepth   int         `json:"queue_depth"`
}

// GetSystemHealth grades the swarm from the failed-versus-active agent
// ratio and the combined queue depth, against the configured thresholds.
func (o *Orchestrator) GetSystemHealth(ctx context.Context) (*Health, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	health := &Health{State: HealthHealthy}
	for _, record := range records {
		switch record.Status {
		case store.StatusHunting:
			health.ActiveAgents++
		case store.StatusIdle:
			health.IdleAgents++
		case store.StatusFailed:
			health.FailedAgents++
		}
	}

	o.mu.Lock()
	queues := make([]queueDepther, 0, len(o.queues))
	for _, q := range o.queues {
		queues = append(queues, q)
	}
	o.mu.Unlock()

	for _, q := range queues {
		depth, err := q.Depth(ctx)
		if err != nil {
			o.logger.Warn("Failed to read queue depth", "error", err.Error())
			continue
		}
		health.QueueDepth += depth
	}

	denominator := health.ActiveAgents + health.FailedAgents
	if denominator > 0 {
		ratio := float64(health.FailedAgents) / float64(denominator)
		switch {
		case ratio >= o.cfg.CriticalFailureRatio:
			health.State = HealthCritical
		case ratio >= o.cfg.DegradedFailureRatio:
			health.State = HealthDegraded
		}
	}

	if health.State == HealthHealthy && health.QueueDepth > o.cfg.QueueDepthWarning {
		health.State = HealthDegraded
	}

	return health, nil
}

type queueDepther interface {
	Depth(ctx context.Context) (int, error)
}
