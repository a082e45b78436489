package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/huntswarm/huntswarm/internal/export"
	"github.com/huntswarm/huntswarm/internal/hunter"
)

// BusinessStore persists discovered businesses. It is the sink agents feed
// and the source exports read from.
type BusinessStore interface {
	export.RecordSource
	SaveBusinesses(ctx context.Context, records []hunter.Record) error
}

// MemoryBusinessStore keeps discovered businesses in memory.
type MemoryBusinessStore struct {
	mu      sync.RWMutex
	records []hunter.Record
}

// NewMemoryBusinessStore creates an empty MemoryBusinessStore.
func NewMemoryBusinessStore() *MemoryBusinessStore {
	return &MemoryBusinessStore{}
}

func (s *MemoryBusinessStore) SaveBusinesses(ctx context.Context, records []hunter.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *MemoryBusinessStore) Businesses(ctx context.Context, filters export.Filters) ([]hunter.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]hunter.Record, 0, len(s.records))
	for _, record := range s.records {
		if filters.Source != "" && record.Source != filters.Source {
			continue
		}
		if filters.Region != "" && record.Region != filters.Region {
			continue
		}
		if filters.Category != "" && record.Category != filters.Category {
			continue
		}
		matched = append(matched, record)
	}
	return matched, nil
}

// Count returns the number of stored businesses.
func (s *MemoryBusinessStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PostgresBusinessStore persists discovered businesses in the businesses
// table.
type PostgresBusinessStore struct {
	db *sqlx.DB
}

// NewPostgresBusinessStore creates a PostgresBusinessStore over an open
// connection.
func NewPostgresBusinessStore(db *sqlx.DB) *PostgresBusinessStore {
	return &PostgresBusinessStore{db: db}
}

func (s *PostgresBusinessStore) SaveBusinesses(ctx context.Context, records []hunter.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO businesses (name, category, address, phone, website, email, region, source, discovered_at)
		VALUES (:name, :category, :address, :phone, :website, :email, :region, :source, :discovered_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, records); err != nil {
		return fmt.Errorf("failed to save businesses: %w", err)
	}
	return nil
}

func (s *PostgresBusinessStore) Businesses(ctx context.Context, filters export.Filters) ([]hunter.Record, error) {
	query := `
		SELECT name, category, address, phone, website, email, region, source, discovered_at
		FROM businesses
		WHERE ($1 = '' OR source = $1)
		  AND ($2 = '' OR region = $2)
		  AND ($3 = '' OR category = $3)
		ORDER BY discovered_at, name
	`

	var records []hunter.Record
	if err := s.db.SelectContext(ctx, &records, query, filters.Source, filters.Region, filters.Category); err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return records, nil
}
