package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Result is a cache hit: the stored data and its age at read time.
type Result struct {
	Data json.RawMessage
	Age  time.Duration
}

// Store is the durable cache actor for one partition. Operations are
// serialized under a single lock; the first operation triggers a cold
// load that sweeps entries already stale for their category before any
// read is served.
type Store struct {
	backend Backend
	policy  TTLPolicy
	now     func() time.Time

	loadOnce sync.Once
	loadErr  error

	mu      sync.Mutex
	entries map[string]*Entry
}

// Options configures a Store.
type Options struct {
	// Policy supplies per-category TTLs for the cold-load sweep. Zero
	// value means DefaultPolicy.
	Policy TTLPolicy

	// Now overrides the wall clock, for deterministic tests.
	Now func() time.Time
}

// NewStore creates a cache store over the given backend.
func NewStore(backend Backend, opts Options) *Store {
	if opts.Policy.Default == 0 && opts.Policy.Categories == nil {
		opts.Policy = DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend: backend,
		policy:  opts.Policy,
		now:     opts.Now,
		entries: make(map[string]*Entry),
	}
}

// ensureLoaded performs the one-time cold load and eager staleness
// sweep. Operations arriving during the load block until it completes.
func (s *Store) ensureLoaded(ctx context.Context) error {
	s.loadOnce.Do(func() {
		entries, err := s.backend.LoadAll(ctx)
		if err != nil {
			s.loadErr = fmt.Errorf("loading cache entries: %w", err)
			return
		}

		now := s.now()
		for _, e := range entries {
			if s.stale(e, now) {
				if err := s.backend.Delete(ctx, e.Key); err != nil {
					slog.Warn("cache: purge on load failed", "key", e.Key, "error", err)
				}
				continue
			}
			s.entries[e.Key] = e
		}
	})
	return s.loadErr
}

// stale reports whether an entry is past its category's TTL.
func (s *Store) stale(e *Entry, now time.Time) bool {
	k, err := ParseKey(e.Key)
	if err != nil {
		return true
	}
	return now.Sub(e.Timestamp) >= s.policy.TTLFor(k.Category)
}

// Get returns the entry for key if it is younger than ttl, or nil on a
// miss. A stale entry is treated as a miss and lazily deleted.
func (s *Store) Get(ctx context.Context, key string, ttl time.Duration) (*Result, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil //nolint:nilnil // nil,nil is the documented miss shape
	}

	age := s.now().Sub(e.Timestamp)
	if age >= ttl {
		if err := s.backend.Delete(ctx, key); err != nil {
			slog.Warn("cache: lazy purge failed", "key", key, "error", err)
		}
		delete(s.entries, key)
		return nil, nil //nolint:nilnil // nil,nil is the documented miss shape
	}
	return &Result{Data: e.Data, Age: age}, nil
}

// Put stores data under key with the current timestamp and persists it.
// The category TTL is deliberately not stored with the entry; staleness
// is recomputed from the caller-supplied TTL on every read.
func (s *Store) Put(ctx context.Context, key string, data json.RawMessage) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if _, err := ParseKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &Entry{Key: key, Data: data, Timestamp: s.now()}
	if err := s.backend.Put(ctx, e); err != nil {
		return fmt.Errorf("persisting cache entry: %w", err)
	}
	s.entries[key] = e
	return nil
}

// ClearForOwner removes every entry whose parsed owner segment equals
// owner, and returns the number of entries removed.
func (s *Store) ClearForOwner(ctx context.Context, owner string) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for raw := range s.entries {
		k, err := ParseKey(raw)
		if err != nil || !k.OwnedBy(owner) {
			continue
		}
		if err := s.backend.Delete(ctx, raw); err != nil {
			return removed, fmt.Errorf("clearing cache entry: %w", err)
		}
		delete(s.entries, raw)
		removed++
	}
	return removed, nil
}

// Count returns the number of resident entries, stale or not.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
