package session

import (
	"context"
	"sync"
)

// MemoryBackend implements Backend with an in-process map. State does
// not survive restarts; it is the default for tests and for deployments
// that opt out of a database.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

// Seed inserts records directly, bypassing a Store. It exists so tests
// can stage persisted state ahead of a cold load.
func (b *MemoryBackend) Seed(recs ...*Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range recs {
		b.records[rec.ID] = rec.clone()
	}
}

// LoadAll returns every stored record.
func (b *MemoryBackend) LoadAll(_ context.Context) ([]*Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Record, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec.clone())
	}
	return out, nil
}

// Put inserts or replaces a record.
func (b *MemoryBackend) Put(_ context.Context, rec *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[rec.ID] = rec.clone()
	return nil
}

// Delete removes a record.
func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, id)
	return nil
}

// Close is a no-op.
func (*MemoryBackend) Close() error {
	return nil
}

// Verify interface compliance.
var _ Backend = (*MemoryBackend)(nil)
