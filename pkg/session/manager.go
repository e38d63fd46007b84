package session

import (
	"fmt"
	"sync"
)

// OpenFunc creates the store for one partition. Partitions are
// independent: stores never coordinate with each other.
type OpenFunc func(partition string) (*Store, error)

// Manager lazily opens one Store per partition name and hands out the
// same instance for the lifetime of the process.
type Manager struct {
	open OpenFunc

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager creates a Manager using open to construct partition stores.
func NewManager(open OpenFunc) *Manager {
	return &Manager{
		open:   open,
		stores: make(map[string]*Store),
	}
}

// Partition returns the store owning the named partition, opening it on
// first use.
func (m *Manager) Partition(name string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[name]; ok {
		return s, nil
	}
	s, err := m.open(name)
	if err != nil {
		return nil, fmt.Errorf("opening session partition %q: %w", name, err)
	}
	m.stores[name] = s
	return s, nil
}

// Close closes every open partition store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing session partition %q: %w", name, err)
		}
		delete(m.stores, name)
	}
	return firstErr
}
