package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is a durable cache entry. Staleness is purely a function of
// now − Timestamp compared against the category TTL supplied at read
// time; no entry is valid past its TTL regardless of access pattern.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Backend persists cache entries with per-key operations. LoadAll is
// called exactly once per Store instance, before any other operation is
// served.
type Backend interface {
	// LoadAll returns every persisted entry in the store's partition.
	LoadAll(ctx context.Context) ([]*Entry, error)

	// Put inserts or replaces an entry.
	Put(ctx context.Context, e *Entry) error

	// Delete removes an entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
