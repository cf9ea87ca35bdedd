package auth

import (
	"context"
	"fmt"
	"sync"

	"spendboard/internal/core"
)

// MemoryStore keeps hashes in a map guarded by a single-writer lock.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hashes: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashes[username]
	if !ok {
		return "", fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	return h, nil
}

func (m *MemoryStore) Put(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[username] = hash
	return nil
}

// Len returns the number of stored users.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hashes)
}
