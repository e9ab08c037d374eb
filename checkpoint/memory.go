package checkpoint

import (
	"context"
	"sync"
)

// MemoryStorage keeps the set in process memory. Progress does not survive
// a restart; it exists for tests and dry runs.
type MemoryStorage struct {
	mu     sync.RWMutex
	set    Set
	closed bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{set: Set{}}
}

func (m *MemoryStorage) Retrieve(ctx context.Context) (Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}
	return m.set.Clone(), nil
}

func (m *MemoryStorage) Persist(ctx context.Context, set Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	for k, v := range set {
		m.set[k] = v
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
