// Package sqlite provides embedded SQLite persistence for cache
// entries, for single-node deployments without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/txn2/mcp-calendar-gateway/pkg/cache"
)

// Store implements cache.Backend using SQLite. Timestamps are stored as
// RFC 3339 text for driver portability. The *sql.DB is owned by the
// caller; Close does not close it.
type Store struct {
	db        *sql.DB
	partition string
}

// Config configures the SQLite cache backend.
type Config struct {
	Partition string
}

// New creates a SQLite cache backend for one partition.
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
	query := `
		SELECT key, data, created_at
		FROM gateway_cache
		WHERE partition_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, s.partition)
	if err != nil {
		return nil, fmt.Errorf("loading cache entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*cache.Entry
	for rows.Next() {
		var e cache.Entry
		var data []byte
		var createdAt string
		if err := rows.Scan(&e.Key, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
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
	query := `
		INSERT OR REPLACE INTO gateway_cache
		(partition_id, key, data, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		s.partition, e.Key, []byte(e.Data),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM gateway_cache WHERE partition_id = ? AND key = ?`
	if _, err := s.db.ExecContext(ctx, query, s.partition, key); err != nil {
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
