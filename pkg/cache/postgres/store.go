// Package postgres provides PostgreSQL persistence for cache entries.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const table = "gateway_cache"

// Store implements cache.Backend using PostgreSQL. The *sql.DB is owned
// by the caller and shared across partitions; Close does not close it.
type Store struct {
	db        *sql.DB
	partition string
}

// Config configures the PostgreSQL cache backend.
type Config struct {
	Partition string
}

// New creates a PostgreSQL cache backend for one partition.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.Partition == "" {
		cfg.Partition = cache.DefaultPartition
	}
	return &Store{
		db:        db,
		partition: cfg.Partition,
	}
}

// LoadAll returns every entry in the store's partition.
func (s *Store) LoadAll(ctx context.Context) ([]*cache.Entry, error) {
	query, args, err := psq.Select("key", "data", "created_at").
		From(table).
		Where(sq.Eq{"partition_id": s.partition}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building cache load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*cache.Entry
	for rows.Next() {
		var e cache.Entry
		var data []byte
		if err := rows.Scan(&e.Key, &data, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		e.Data = data
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache rows: %w", err)
	}
	return entries, nil
}

// Put inserts or replaces an entry.
func (s *Store) Put(ctx context.Context, e *cache.Entry) error {
	query, args, err := psq.Insert(table).
		Columns("partition_id", "key", "data", "created_at").
		Values(s.partition, e.Key, []byte(e.Data), e.Timestamp).
		Suffix(`ON CONFLICT (partition_id, key) DO UPDATE SET
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cache upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := psq.Delete(table).
		Where(sq.Eq{"partition_id": s.partition, "key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cache delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (*Store) Close() error {
	return nil
}

// Verify interface compliance.
var _ cache.Backend = (*Store)(nil)
