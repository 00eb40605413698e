package persist

import (
	"context"
	"sync"
)

// Memory is an in-process Provider. Nothing survives the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// Get implements Provider.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set implements Provider.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

// Writes returns the number of Set calls so far.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close implements Provider.
func (m *Memory) Close() error { return nil }
