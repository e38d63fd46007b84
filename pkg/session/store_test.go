package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = "user-1"
	testDataKey = "theme"
	testDataVal = "dark"
)

// fakeClock is a mutable clock for deterministic expiration tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *MemoryBackend, *fakeClock) {
	t.Helper()
	backend := NewMemoryBackend()
	clock := newFakeClock()
	store := NewStore(backend, Options{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	return store, backend, clock
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, map[string]any{testDataKey: testDataVal})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, testUserID, rec.UserID)
	assert.Equal(t, testDataVal, rec.Data[testDataKey])
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, testDataVal, got.Data[testDataKey])
}

func TestStore_Create_UniqueIDs(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 50 {
		rec, err := store.Create(ctx, testUserID, nil)
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "duplicate session id %q", rec.ID)
		seen[rec.ID] = true
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Get_SlidingExpiration(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	// Each read inside the window pushes the window forward.
	clock.Advance(40 * time.Minute)
	_, err = store.Get(ctx, rec.ID)
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err, "read within the refreshed window must succeed")
	assert.Equal(t, clock.Now(), got.UpdatedAt)

	// A full idle hour without activity expires the record.
	clock.Advance(time.Hour + time.Second)
	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Get_ExpiredIsPurgedFromBackend(t *testing.T) {
	store, backend, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = store.Get(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	recs, err := backend.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs, "expired record should be deleted from the backend")
}

func TestStore_Update_MergesData(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)

	got, err := store.Update(ctx, rec.ID, map[string]any{"b": "3", "c": "4"})
	require.NoError(t, err)
	assert.Equal(t, "1", got.Data["a"], "untouched key retained")
	assert.Equal(t, "3", got.Data["b"], "overlapping key overridden")
	assert.Equal(t, "4", got.Data["c"], "new key added")
}

func TestStore_Update_NotFound(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Update(context.Background(), "missing", map[string]any{"a": "1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Update_TouchesUpdatedAt(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	got, err := store.Update(ctx, rec.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), got.UpdatedAt)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt, "CreatedAt never moves")
}

func TestStore_Delete(t *testing.T) {
	store, backend, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed")

	recs, err := backend.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_ColdLoad_PurgesExpired(t *testing.T) {
	backend := NewMemoryBackend()
	clock := newFakeClock()

	fresh := &Record{ID: "fresh", UserID: testUserID, CreatedAt: clock.Now().Add(-30 * time.Minute), UpdatedAt: clock.Now().Add(-30 * time.Minute)}
	stale := &Record{ID: "stale", UserID: testUserID, CreatedAt: clock.Now().Add(-3 * time.Hour), UpdatedAt: clock.Now().Add(-2 * time.Hour)}
	backend.Seed(fresh, stale)

	store := NewStore(backend, Options{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := backend.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fresh", recs[0].ID)
}

func TestStore_Sweep(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	kept, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestStore_CustomTTL(t *testing.T) {
	backend := NewMemoryBackend()
	clock := newFakeClock()
	store := NewStore(backend, Options{TTL: time.Minute, Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// flakyBackend wraps a MemoryBackend with switchable Put failures.
type flakyBackend struct {
	*MemoryBackend
	failPut bool
}

func (b *flakyBackend) Put(ctx context.Context, rec *Record) error {
	if b.failPut {
		return errors.New("backend unavailable")
	}
	return b.MemoryBackend.Put(ctx, rec)
}

func TestStore_Get_FailedTouchDoesNotSlideWindow(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	clock := newFakeClock()
	store := NewStore(backend, Options{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, nil)
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	backend.failPut = true
	_, err = store.Get(ctx, rec.ID)
	require.Error(t, err)
	backend.failPut = false

	// Had the failed touch committed in memory, the record would stay
	// live for another hour. It must expire from its original window.
	clock.Advance(25 * time.Minute)
	_, err = store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Update_FailedPersistLeavesDataUnchanged(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	clock := newFakeClock()
	store := NewStore(backend, Options{Now: clock.Now})
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, map[string]any{testDataKey: testDataVal})
	require.NoError(t, err)

	backend.failPut = true
	_, err = store.Update(ctx, rec.ID, map[string]any{testDataKey: "changed"})
	require.Error(t, err)
	backend.failPut = false

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, testDataVal, got.Data[testDataKey])
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testUserID, map[string]any{testDataKey: testDataVal})
	require.NoError(t, err)

	// Mutating a returned record must not leak into the store.
	rec.Data[testDataKey] = "mutated"

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, testDataVal, got.Data[testDataKey])
}
