// Package session provides the durable session store for the gateway.
// Each Store instance owns one partition of session records, executes
// its operations one at a time, and persists every mutation through a
// keyed Backend so records survive process restarts.
package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the idle time after which a session record expires.
const DefaultTTL = time.Hour

// ErrNotFound is returned when no session record exists for an id.
var ErrNotFound = errors.New("session not found")

// Record is a durable session record. UpdatedAt slides forward on every
// read or write, so a record expires only after TTL of inactivity.
type Record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Data      map[string]any `json:"data"`
}

// clone returns a copy safe to hand outside the store's lock.
func (r *Record) clone() *Record {
	out := *r
	out.Data = make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		out.Data[k] = v
	}
	return &out
}

// Backend persists session records with per-key operations. LoadAll is
// called exactly once per Store instance, before any other operation is
// served.
type Backend interface {
	// LoadAll returns every persisted record in the store's partition.
	LoadAll(ctx context.Context) ([]*Record, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *Record) error

	// Delete removes a record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
