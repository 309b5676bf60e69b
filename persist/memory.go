package persist

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is the default when no durable backend
// is configured, and the workhorse of tests.
type Memory struct {
	mu     sync.Mutex
	stored Projection
	ok     bool
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save replaces the stored projection.
func (m *Memory) Save(_ context.Context, p Projection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.Extra = p.cloneExtra()
	m.stored = p
	m.ok = true
	return nil
}

// Load returns the stored projection, or ok=false when nothing was saved.
func (m *Memory) Load(_ context.Context) (Projection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ok {
		return Projection{}, false, nil
	}
	p := m.stored
	p.Extra = p.cloneExtra()
	return p, true, nil
}

// Clear forgets the stored projection.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stored = Projection{}
	m.ok = false
	return nil
}
