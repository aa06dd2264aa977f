package store

import (
	"context"
	"sync"

	authsession "github.com/goliatone/go-auth-session"
)

// Memory keeps the record in process memory
type Memory struct {
	mu     sync.Mutex
	record []byte
	writes int
}

var _ authsession.Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements authsession.Store
func (m *Memory) Get(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, authsession.ErrNoRecord
	}
	return clone(m.record), nil
}

// Set implements authsession.Store
func (m *Memory) Set(ctx context.Context, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = clone(record)
	m.writes++
	return nil
}

// Clear implements authsession.Store
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}

// Writes returns how many times Set was called
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
