package hunter

import (
	"fmt"
	"sort"
	"sync"
)

// SourceFactory builds a fresh Source for one agent.
type SourceFactory func() Source

// Registry maps agent types to source factories. Agents are wired to their
// source through the registry at deployment time, so adding a source kind
// never touches orchestration logic.
type Registry struct {
	mu        sync.RWMutex
	factories map[AgentType]SourceFactory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[AgentType]SourceFactory),
	}
}

// NewDefaultRegistry creates a Registry with placeholder sources registered
// for every built-in agent type.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, typ := range []AgentType{TypeGoogleMaps, TypeYellowPages, TypeLinkedIn, TypeTradeRegistry} {
		t := typ
		r.Register(t, func() Source { return NewPlaceholderSource(t) })
	}
	return r
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ AgentType, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// NewSource builds a Source for typ, or errors if the type is unknown.
func (r *Registry) NewSource(typ AgentType) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", typ)
	}
	return factory(), nil
}

// Types returns the registered agent types in stable order.
func (r *Registry) Types() []AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]AgentType, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
