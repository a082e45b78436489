package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore persists agent records in the agents table. Counter bumps
// are single UPDATE statements, so the database stays the only
// serialization point and records survive process restarts.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore over an open connection.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) Put(ctx context.Context, record *AgentRecord) error {
	query := `
		INSERT INTO agents (id, type, status, assigned_target, collected, enriched, validated, started_at, last_activity_at, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    assigned_target = EXCLUDED.assigned_target,
		    last_activity_at = EXCLUDED.last_activity_at
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Type,
		record.Status,
		record.AssignedTarget,
		record.Collected,
		record.Enriched,
		record.Validated,
		record.StartedAt,
		record.LastActivityAt,
		pq.Array(record.Errors),
	)
	if err != nil {
		return fmt.Errorf("failed to put agent record: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*AgentRecord, error) {
	query := `
		SELECT id, type, status, assigned_target, collected, enriched, validated, started_at, last_activity_at, errors
		FROM agents
		WHERE id = $1
	`

	record, err := s.scanOne(s.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent record: %w", err)
	}

	return record, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*AgentRecord, error) {
	query := `
		SELECT id, type, status, assigned_target, collected, enriched, validated, started_at, last_activity_at, errors
		FROM agents
		ORDER BY id
	`
	return s.selectRecords(ctx, query)
}

func (s *PostgresStore) ListByType(ctx context.Context, agentType string) ([]*AgentRecord, error) {
	query := `
		SELECT id, type, status, assigned_target, collected, enriched, validated, started_at, last_activity_at, errors
		FROM agents
		WHERE type = $1
		ORDER BY id
	`
	return s.selectRecords(ctx, query, agentType)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `
		UPDATE agents
		SET status = $1,
		    last_activity_at = NOW()
		WHERE id = $2
	`

	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgentNotFound
	}

	s.logger.Debug("Agent status updated",
		slog.String("agent_id", id),
		slog.String("status", string(status)),
	)

	return nil
}

func (s *PostgresStore) IncrementCounters(ctx context.Context, id string, collected, enriched, validated int) error {
	query := `
		UPDATE agents
		SET collected = collected + $1,
		    enriched = enriched + $2,
		    validated = validated + $3,
		    last_activity_at = NOW()
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, collected, enriched, validated, id)
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgentNotFound
	}

	return nil
}

func (s *PostgresStore) RecordError(ctx context.Context, id string, message string) error {
	// Keep only the most recent entries; the list is bounded.
	query := `
		UPDATE agents
		SET errors = (array_append(errors, $1::text))[greatest(1, array_length(array_append(errors, $1::text), 1) - $2 + 1):],
		    last_activity_at = NOW()
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, message, maxRecordedErrors, id)
	if err != nil {
		return fmt.Errorf("failed to record agent error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAgentNotFound
	}

	return nil
}

func (s *PostgresStore) selectRecords(ctx context.Context, query string, args ...interface{}) ([]*AgentRecord, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent records: %w", err)
	}
	defer rows.Close()

	var records []*AgentRecord
	for rows.Next() {
		record, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agent records: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*AgentRecord, error) {
	var record AgentRecord
	var errs pq.StringArray

	err := row.Scan(
		&record.ID,
		&record.Type,
		&record.Status,
		&record.AssignedTarget,
		&record.Collected,
		&record.Enriched,
		&record.Validated,
		&record.StartedAt,
		&record.LastActivityAt,
		&errs,
	)
	if err != nil {
		return nil, err
	}

	record.Errors = []string(errs)
	return &record, nil
}
