package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MemoryBus is an in-process Bus with the manager's set-once
// semantics, used by tests to run all parties inside one process.
type MemoryBus struct {
	mu      sync.Mutex
	entries map[string]string

	signupMu  sync.Mutex
	signupSeq map[string]uint16
}

// NewMemoryBus returns an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		entries:   make(map[string]string),
		signupSeq: make(map[string]uint16),
	}
}

// Set implements Bus; a second write to an occupied key fails.
func (m *MemoryBus) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		return errors.Errorf("key %s already set", key)
	}
	m.entries[key] = value
	return nil
}

// Get implements Bus.
func (m *MemoryBus) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Signup hands out sequential party numbers per session namespace,
// mimicking the manager's signup endpoints.
func (m *MemoryBus) Signup(uuid string) *PartySignup {
	m.signupMu.Lock()
	defer m.signupMu.Unlock()
	m.signupSeq[uuid]++
	return &PartySignup{Number: m.signupSeq[uuid], UUID: uuid}
}
