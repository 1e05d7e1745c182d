// Package local implements the local record store: durable key-value
// persistence of the expense list, settings and theme for one origin.
package local

import (
	"sync"
)

// Storage is a synchronous string key-value store, the equivalent of a
// browser's localStorage or sessionStorage.
type Storage interface {
	// GetItem returns the value for key and whether it was present.
	GetItem(key string) (string, bool, error)

	// SetItem overwrites the value for key.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error
}

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is a Storage that lives as long as the process, used for
// session-scoped state such as the guest flag.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
