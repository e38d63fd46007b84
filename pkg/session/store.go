package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the durable session actor for one partition. All operations
// are serialized under a single lock, and the first operation triggers a
// cold load from the backend; operations arriving during the load block
// until it completes rather than racing a partially-loaded state.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time

	loadOnce sync.Once
	loadErr  error

	mu      sync.Mutex
	records map[string]*Record

	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Store.
type Options struct {
	// TTL is the sliding idle expiration window. Zero means DefaultTTL.
	TTL time.Duration

	// Now overrides the wall clock, for deterministic tests.
	Now func() time.Time
}

// NewStore creates a session store over the given backend. The backend
// is not read until the first operation.
func NewStore(backend Backend, opts Options) *Store {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend: backend,
		ttl:     opts.TTL,
		now:     opts.Now,
		records: make(map[string]*Record),
	}
}

// ensureLoaded performs the one-time cold load: read everything from the
// backend and purge records already past the idle TTL.
func (s *Store) ensureLoaded(ctx context.Context) error {
	s.loadOnce.Do(func() {
		recs, err := s.backend.LoadAll(ctx)
		if err != nil {
			s.loadErr = fmt.Errorf("loading sessions: %w", err)
			return
		}

		now := s.now()
		for _, rec := range recs {
			if now.Sub(rec.UpdatedAt) > s.ttl {
				if err := s.backend.Delete(ctx, rec.ID); err != nil {
					slog.Warn("session: purge on load failed", "session_id", rec.ID, "error", err)
				}
				continue
			}
			s.records[rec.ID] = rec
		}
	})
	return s.loadErr
}

// Create generates a unique id, persists a fresh record, and returns it.
func (s *Store) Create(ctx context.Context, userID string, data map[string]any) (*Record, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      make(map[string]any, len(data)),
	}
	for k, v := range data {
		rec.Data[k] = v
	}

	if err := s.backend.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	s.records[rec.ID] = rec
	return rec.clone(), nil
}

// Get returns a record and touches its UpdatedAt (sliding expiration).
// The touch is persisted. Returns ErrNotFound for unknown or expired ids.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	// Touch a copy and commit it only once persisted, so a backend
	// failure leaves the in-memory record matching the backend.
	touched := rec.clone()
	touched.UpdatedAt = s.now()
	if err := s.backend.Put(ctx, touched); err != nil {
		return nil, fmt.Errorf("persisting session touch: %w", err)
	}
	s.records[id] = touched
	return touched.clone(), nil
}

// Update shallow-merges partial data into the record: keys in data
// override, all other keys are retained. UpdatedAt is touched.
func (s *Store) Update(ctx context.Context, id string, data map[string]any) (*Record, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	// Merge into a copy and commit it only once persisted.
	merged := rec.clone()
	for k, v := range data {
		merged.Data[k] = v
	}
	merged.UpdatedAt = s.now()

	if err := s.backend.Put(ctx, merged); err != nil {
		return nil, fmt.Errorf("persisting session update: %w", err)
	}
	s.records[id] = merged
	return merged.clone(), nil
}

// Delete removes a record and reports whether anything was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	delete(s.records, id)
	return true, nil
}

// Sweep removes every record idle past the TTL and returns the count.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.records {
		if now.Sub(rec.UpdatedAt) <= s.ttl {
			continue
		}
		if err := s.backend.Delete(ctx, id); err != nil {
			return removed, fmt.Errorf("sweeping session: %w", err)
		}
		delete(s.records, id)
		removed++
	}
	return removed, nil
}

// Count returns the number of live records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// StartSweepRoutine starts a background goroutine that periodically
// sweeps expired sessions. The goroutine is stopped by Close.
func (s *Store) StartSweepRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					slog.Warn("session sweep failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the sweep goroutine and closes the backend. It is safe to
// call Close even if StartSweepRoutine was never called.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return s.backend.Close()
}

// liveLocked returns the live record for id, lazily purging it when the
// idle TTL has elapsed. Callers must hold s.mu.
func (s *Store) liveLocked(ctx context.Context, id string) (*Record, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		if err := s.backend.Delete(ctx, id); err != nil {
			slog.Warn("session: lazy purge failed", "session_id", id, "error", err)
		}
		delete(s.records, id)
		return nil, ErrNotFound
	}
	return rec, nil
}
