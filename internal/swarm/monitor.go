package swarm

import (
	"context"
	"log/slog"
	"time"

	"github.com/huntswarm/huntswarm/internal/store"
)

// runStallMonitor periodically scans hunting agents whose last activity is
// older than the stall threshold and heals them: back to idle, then
// restarted with their remaining target re-enqueued. No external
// intervention is involved.
func (o *Orchestrator) runStallMonitor(ctx context.Context, stop <-chan struct{}) {
	defer o.monitorWG.Done()

	ticker := time.NewTicker(o.cfg.StallCheckInterval)
	defer ticker.Stop()

	o.logger.Info("Stall monitor started",
		slog.Duration("interval", o.cfg.StallCheckInterval),
		slog.Duration("stall_after", o.cfg.StallAfter),
	)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.healStalledAgents(ctx)
		}
	}
}

// healStalledAgents performs one monitoring cycle.
func (o *Orchestrator) healStalledAgents(ctx context.Context) {
	records, err := o.store.List(ctx)
	if err != nil {
		o.logger.Error("Stall monitor failed to list agents",
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now()
	for _, record := range records {
		if record.Status != store.StatusHunting {
			continue
		}
		if now.Sub(record.LastActivityAt) < o.cfg.StallAfter {
			continue
		}

		o.logger.Warn("Stalled agent detected",
			slog.String("agent_id", record.ID),
			slog.Time("last_activity", record.LastActivityAt),
		)

		if err := o.store.UpdateStatus(ctx, record.ID, store.StatusIdle); err != nil {
			o.logger.Error("Failed to idle stalled agent",
				slog.String("agent_id", record.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := o.RestartHunter(ctx, record.ID); err != nil {
			o.logger.Error("Failed to restart stalled agent",
				slog.String("agent_id", record.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
