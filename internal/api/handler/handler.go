package handler

import (
	"context"
	"log/slog"

	"github.com/huntswarm/huntswarm/internal/export"
	"github.com/huntswarm/huntswarm/internal/hunter"
	"github.com/huntswarm/huntswarm/internal/swarm"
)

// Coordinator is the slice of the orchestrator the HTTP layer needs.
type Coordinator interface {
	Start(ctx context.Context, targets map[hunter.AgentType]int) error
	StopSwarm(ctx context.Context) error
	GetProgress(ctx context.Context) (*swarm.Progress, error)
	GetHunterStatus(ctx context.Context) ([]swarm.HunterStatus, error)
	GetSystemHealth(ctx context.Context) (*swarm.Health, error)
	ScaleHunters(ctx context.Context, typ hunter.AgentType, count int) error
	PauseHunter(ctx context.Context, id string) error
	RestartHunter(ctx context.Context, id string) error
	ExportBusinesses(ctx context.Context, format string, filters export.Filters) ([]byte, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Coordinator Coordinator
}

// SwarmHandler handles swarm control HTTP requests
type SwarmHandler struct {
	logger      *slog.Logger
	coordinator Coordinator
}

// NewSwarmHandler creates a new SwarmHandler instance
func NewSwarmHandler(deps *Dependencies) *SwarmHandler {
	return &SwarmHandler{
		logger:      deps.Logger,
		coordinator: deps.Coordinator,
	}
}
