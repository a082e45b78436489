package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/huntswarm/huntswarm/internal/store"
)

// Progress is a derived aggregate over the agent record set. It is always
// recomputed, never persisted.
type Progress struct {
	Collected           int       `json:"collected"`
	Enriched            int       `json:"enriched"`
	Validated           int       `json:"validated"`
	TotalTarget         int       `json:"total_target"`
	Percentage          float64   `json:"percentage"`
	ActiveAgents        int       `json:"active_agents"`
	EstimatedCompletion time.Time `json:"estimated_completion,omitempty"`
}

// HunterStatus is the per-agent view returned by GetHunterStatus.
type HunterStatus struct {
	ID             string       `json:"id"`
	Type           string       `json:"type"`
	Status         store.Status `json:"status"`
	AssignedTarget int          `json:"assigned_target"`
	Collected      int          `json:"collected"`
	Enriched       int          `json:"enriched"`
	Validated      int          `json:"validated"`
	StartedAt      time.Time    `json:"started_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	Errors         []string     `json:"errors,omitempty"`
}

// GetProgress aggregates progress across all agents.
func (o *Orchestrator) GetProgress(ctx context.Context) (*Progress, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	progress := &Progress{TotalTarget: o.cfg.TotalTarget}
	var earliestStart time.Time

	for _, record := range records {
		progress.Collected += record.Collected
		progress.Enriched += record.Enriched
		progress.Validated += record.Validated
		if record.Status == store.StatusHunting {
			progress.ActiveAgents++
		}
		if earliestStart.IsZero() || record.StartedAt.Before(earliestStart) {
			earliestStart = record.StartedAt
		}
	}

	if o.cfg.TotalTarget > 0 {
		progress.Percentage = float64(progress.Validated) / float64(o.cfg.TotalTarget) * 100
		if progress.Percentage > 100 {
			progress.Percentage = 100
		}
	}

	progress.EstimatedCompletion = estimateCompletion(earliestStart, progress.Validated, o.cfg.TotalTarget)

	return progress, nil
}

// estimateCompletion projects the finish time from the observed rate.
// Returns zero when there is no signal to project from.
func estimateCompletion(start time.Time, validated, total int) time.Time {
	if start.IsZero() || validated <= 0 || validated >= total {
		return time.Time{}
	}

	elapsed := time.Since(start)
	if elapsed <= 0 {
		return time.Time{}
	}

	rate := float64(validated) / elapsed.Seconds()
	remaining := float64(total - validated)
	return time.Now().Add(time.Duration(remaining/rate) * time.Second)
}

// GetHunterStatus returns the per-agent status list.
func (o *Orchestrator) GetHunterStatus(ctx context.Context) ([]HunterStatus, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	statuses := make([]HunterStatus, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, HunterStatus{
			ID:             record.ID,
			Type:           record.Type,
			Status:         record.Status,
			AssignedTarget: record.AssignedTarget,
			Collected:      record.Collected,
			Enriched:       record.Enriched,
			Validated:      record.Validated,
			StartedAt:      record.StartedAt,
			LastActivityAt: record.LastActivityAt,
			Errors:         record.Errors,
		})
	}

	return statuses, nil
}
