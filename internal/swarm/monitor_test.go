package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huntswarm/huntswarm/internal/hunter"
	"github.com/huntswarm/huntswarm/internal/store"
)

func TestStallMonitor_HealsStalledAgent(t *testing.T) {
	registry := succeedingRegistry(hunter.TypeGoogleMaps)
	events := &eventCollector{}
	o, st := newTestOrchestrator(t, Config{
		TotalTarget:        20,
		BatchSize:          20,
		QueueConcurrency:   1,
		StallCheckInterval: 20 * time.Millisecond,
		StallAfter:         50 * time.Millisecond,
	}, registry, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A hunting agent whose job was lost: no queue entry, stale activity.
	stale := time.Now().Add(-time.Minute)
	record := &store.AgentRecord{
		ID:             uuid.New().String(),
		Type:           string(hunter.TypeGoogleMaps),
		Status:         store.StatusHunting,
		AssignedTarget: 20,
		StartedAt:      stale,
		LastActivityAt: stale,
	}
	require.NoError(t, st.Put(ctx, record))

	require.NoError(t, o.Run(ctx))
	defer o.Stop()

	// The monitor idles the stalled agent, restarts it, and the re-enqueued
	// work drives it to completion.
	require.Eventually(t, func() bool {
		got, err := st.Get(ctx, record.ID)
		return err == nil && got.Status == store.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond, "stalled agent was never healed")

	got, err := st.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Collected)
	assert.NotEmpty(t, events.byType(EventAgentRestarted))
}

func TestStallMonitor_LeavesActiveAgentsAlone(t *testing.T) {
	registry := succeedingRegistry(hunter.TypeGoogleMaps)
	events := &eventCollector{}
	o, st := newTestOrchestrator(t, Config{
		TotalTarget:        20,
		BatchSize:          20,
		StallCheckInterval: 10 * time.Millisecond,
		StallAfter:         time.Hour,
	}, registry, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	record := &store.AgentRecord{
		ID:             uuid.New().String(),
		Type:           string(hunter.TypeGoogleMaps),
		Status:         store.StatusHunting,
		AssignedTarget: 20,
		StartedAt:      now,
		LastActivityAt: now,
	}
	require.NoError(t, st.Put(ctx, record))

	o.healStalledAgents(ctx)

	got, err := st.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusHunting, got.Status)
	assert.Empty(t, events.byType(EventAgentRestarted))
}
