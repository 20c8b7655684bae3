package storage

import (
	"context"
	"sync"

	"github.com/trillian-merkle/fuelmerkle/common"
)

// MemoryStore is an in-memory Store implementation. It is the reference
// implementation and the fixture every tree's unit tests run against; it
// is safe for concurrent use, though the trees themselves never call it
// concurrently on a single mutation.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[compositeKey(prefix, key)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryStore) Set(_ context.Context, prefix, key common.Digest, node []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(node))
	copy(cp, node)
	m.data[compositeKey(prefix, key)] = cp
	return nil
}

func (m *MemoryStore) Take(_ context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := compositeKey(prefix, key)
	v, ok := m.data[k]
	if !ok {
		return nil, false, nil
	}
	delete(m.data, k)
	return v, true, nil
}

// Len reports the number of nodes currently held, across all prefixes.
// It exists for test assertions, mirroring the diagnostic Len() method
// the pack's in-memory key-value stores expose.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
