package store

import (
	"context"
	"sync"

	"portalguard"
)

// Memory keeps the session in process memory.
type Memory struct {
	mu    sync.RWMutex
	entry portalguard.SessionEntry
}

var _ portalguard.SessionStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save writes the non-empty slots of entry.
func (m *Memory) Save(_ context.Context, entry portalguard.SessionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = merge(m.entry, entry)
	return nil
}

// Load returns a copy of the stored slots.
func (m *Memory) Load(_ context.Context) (portalguard.SessionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.entry), nil
}

// Clear drops all slots.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = portalguard.SessionEntry{}
	return nil
}
