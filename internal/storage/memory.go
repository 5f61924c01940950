package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store, used by tests and the memory backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	// FailWrites makes Set and Delete return the given error.
	FailWrites error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.data, key)
	return nil
}

// SetFailWrites toggles write failures under the store lock.
func (m *MemoryStore) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWrites = err
}
