// Package sqlite provides embedded SQLite persistence for session
// records, for single-node deployments without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/txn2/mcp-calendar-gateway/pkg/session"
)

// Store implements session.Backend using SQLite. Timestamps are stored
// as RFC 3339 text for driver portability. The *sql.DB is owned by the
// caller; Close does not close it.
type Store struct {
	db        *sql.DB
	partition string
}

// Config configures the SQLite session backend.
type Config struct {
	Partition string
}

// New creates a SQLite session backend for one partition.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.Partition == "" {
		cfg.Partition = session.DefaultPartition
	}
	return &Store{
		db:        db,
		partition: cfg.Partition,
	}
}

// LoadAll returns every record in the store's partition.
func (s *Store) LoadAll(ctx context.Context) ([]*session.Record, error) {
	query := `
		SELECT id, user_id, created_at, updated_at, data
		FROM gateway_sessions
		WHERE partition_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, s.partition)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*session.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return records, nil
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		data = []byte("{}")
	}

	query := `
		INSERT OR REPLACE INTO gateway_sessions
		(partition_id, id, user_id, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		s.partition, rec.ID, rec.UserID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		data,
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM gateway_sessions WHERE partition_id = ? AND id = ?`
	if _, err := s.db.ExecContext(ctx, query, s.partition, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (*Store) Close() error {
	return nil
}

// scanRecord scans a row from sql.Rows into a Record.
func scanRecord(rows *sql.Rows) (*session.Record, error) {
	var rec session.Record
	var createdAt, updatedAt string
	var data []byte

	if err := rows.Scan(&rec.ID, &rec.UserID, &createdAt, &updatedAt, &data); err != nil {
		return nil, fmt.Errorf("scanning session row: %w", err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	rec.Data = make(map[string]any)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Data)
	}
	return &rec, nil
}

// Verify interface compliance.
var _ session.Backend = (*Store)(nil)
