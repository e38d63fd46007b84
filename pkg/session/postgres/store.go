// Package postgres provides PostgreSQL persistence for session records.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-calendar-gateway/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const table = "gateway_sessions"

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{"id", "user_id", "created_at", "updated_at", "data"}

// Store implements session.Backend using PostgreSQL. The *sql.DB is
// owned by the caller and shared across partitions; Close does not
// close it.
type Store struct {
	db        *sql.DB
	partition string
}

// Config configures the PostgreSQL session backend.
type Config struct {
	Partition string
}

// New creates a PostgreSQL session backend for one partition.
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
	query, args, err := psq.Select(sessionColumns...).
		From(table).
		Where(sq.Eq{"partition_id": s.partition}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

	query, args, err := psq.Insert(table).
		Columns("partition_id", "id", "user_id", "created_at", "updated_at", "data").
		Values(s.partition, rec.ID, rec.UserID, rec.CreatedAt, rec.UpdatedAt, data).
		Suffix(`ON CONFLICT (partition_id, id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			updated_at = EXCLUDED.updated_at,
			data = EXCLUDED.data`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building session upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, args, err := psq.Delete(table).
		Where(sq.Eq{"partition_id": s.partition, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building session delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
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
	var data []byte

	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt, &data); err != nil {
		return nil, fmt.Errorf("scanning session row: %w", err)
	}

	rec.Data = make(map[string]any)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Data)
	}
	return &rec, nil
}

// Verify interface compliance.
var _ session.Backend = (*Store)(nil)
