package objstore

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryStore keeps documents in memory. It backs dry runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) FetchFile(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: %s", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) WriteFile(_ context.Context, key string, content []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = append([]byte(nil), content...)
	return nil
}

func (m *MemoryStore) FetchDirectoryFiles(_ context.Context, prefix string) (Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.docs))
	for k := range m.docs {
		keys = append(keys, k)
	}
	return listKeys(prefix, keys), nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Keys returns every stored key in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.docs))
	for k := range m.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
