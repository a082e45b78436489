package store

import (
	"context"
	"errors"
	"time"
)

// ErrAgentNotFound is returned when an agent record does not exist.
var ErrAgentNotFound = errors.New("agent not found")

// Status is an agent's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusHunting   Status = "hunting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// maxRecordedErrors bounds the per-agent error list.
const maxRecordedErrors = 10

// AgentRecord is the durable state of one hunter agent. Records are created
// when the orchestrator allocates a share of a target, mutated by job
// handlers and control operations, and never deleted.
type AgentRecord struct {
	ID             string    `db:"id"`
	Type           string    `db:"type"`
	Status         Status    `db:"status"`
	AssignedTarget int       `db:"assigned_target"`
	Collected      int       `db:"collected"`
	Enriched       int       `db:"enriched"`
	Validated      int       `db:"validated"`
	StartedAt      time.Time `db:"started_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
	Errors         []string  `db:"-"`
}

// Remaining returns how many records the agent still owes its target.
func (r *AgentRecord) Remaining() int {
	remaining := r.AssignedTarget - r.Collected
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Store persists agent records. Counter mutation is atomic at the store
// layer; it is the single serialization point, so callers never lock.
type Store interface {
	Put(ctx context.Context, record *AgentRecord) error
	Get(ctx context.Context, id string) (*AgentRecord, error)
	List(ctx context.Context) ([]*AgentRecord, error)
	ListByType(ctx context.Context, agentType string) ([]*AgentRecord, error)
	UpdateStatus(ctx context.Context, id string, status Status) error

	// IncrementCounters atomically bumps the progress counters and refreshes
	// the agent's last-activity timestamp.
	IncrementCounters(ctx context.Context, id string, collected, enriched, validated int) error

	// RecordError appends to the agent's bounded error list.
	RecordError(ctx context.Context, id string, message string) error
}
