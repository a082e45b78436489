package swarm

import "time"

// Event types emitted by the orchestrator. Persisting and reporting on them
// is the audit collaborator's responsibility.
const (
	EventAgentStarted   = "agent.started"
	EventAgentCompleted = "agent.completed"
	EventAgentPaused    = "agent.paused"
	EventAgentRestarted = "agent.restarted"
	EventAgentErrored   = "agent.errored"
	EventAgentScaled    = "agent.scaled"
	EventHuntSucceeded  = "hunt.succeeded"
	EventHuntFailed     = "hunt.failed"
	EventSwarmCompleted = "swarm.completed"
	EventSwarmStopped   = "swarm.stopped"
)

// Event is a well-formed domain notification.
type Event struct {
	Type      string    `json:"event_type"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives orchestrator events. Observers are injected
// dependencies, not a global bus, so the core stays testable without a live
// dashboard or audit consumer attached.
type Observer interface {
	Notify(event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event Event)

// Notify calls f.
func (f ObserverFunc) Notify(event Event) {
	f(event)
}
