package cache

import (
	"context"
	"sync"
)

// MemoryBackend implements Backend with an in-process map. It is the
// default for tests and database-less deployments.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]*Entry)}
}

// Seed inserts entries directly, bypassing a Store, so tests can stage
// persisted state ahead of a cold load.
func (b *MemoryBackend) Seed(entries ...*Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		cp := *e
		b.entries[e.Key] = &cp
	}
}

// LoadAll returns every stored entry.
func (b *MemoryBackend) LoadAll(_ context.Context) ([]*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Entry, 0, len(b.entries))
	for _, e := range b.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// Put inserts or replaces an entry.
func (b *MemoryBackend) Put(_ context.Context, e *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *e
	b.entries[e.Key] = &cp
	return nil
}

// Delete removes an entry.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

// Close is a no-op.
func (*MemoryBackend) Close() error {
	return nil
}

// Verify interface compliance.
var _ Backend = (*MemoryBackend)(nil)
