package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-process Store used by tests and
// broker-less deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*AgentRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*AgentRecord),
	}
}

func (s *MemoryStore) Put(ctx context.Context, record *AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	clone.Errors = append([]string(nil), record.Errors...)
	s.records[record.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrAgentNotFound
	}

	clone := *record
	clone.Errors = append([]string(nil), record.Errors...)
	return &clone, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*AgentRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		clone.Errors = append([]string(nil), record.Errors...)
		records = append(records, &clone)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *MemoryStore) ListByType(ctx context.Context, agentType string) ([]*AgentRecord, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := all[:0]
	for _, record := range all {
		if record.Type == agentType {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return ErrAgentNotFound
	}

	record.Status = status
	record.LastActivityAt = time.Now()
	return nil
}

func (s *MemoryStore) IncrementCounters(ctx context.Context, id string, collected, enriched, validated int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return ErrAgentNotFound
	}

	record.Collected += collected
	record.Enriched += enriched
	record.Validated += validated
	record.LastActivityAt = time.Now()
	return nil
}

func (s *MemoryStore) RecordError(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return ErrAgentNotFound
	}

	record.Errors = append(record.Errors, message)
	if len(record.Errors) > maxRecordedErrors {
		record.Errors = record.Errors[len(record.Errors)-maxRecordedErrors:]
	}
	record.LastActivityAt = time.Now()
	return nil
}
