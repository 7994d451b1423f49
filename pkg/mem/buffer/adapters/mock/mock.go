// Package mock provides an in-memory buffer.Store for testing.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/openclaw/memtier/pkg/mem"
)

// MockBuffer implements the buffer.Store interface in memory.
type MockBuffer struct {
	mu    sync.RWMutex
	lists map[string][]mem.Turn

	// AppendErr, ReadErr and ClearErr force the corresponding operation
	// to fail, for exercising failure paths.
	AppendErr error
	ReadErr   error
	ClearErr  error
}

// NewMockBuffer creates an empty in-memory buffer.
func NewMockBuffer() *MockBuffer {
	return &MockBuffer{lists: make(map[string][]mem.Turn)}
}

// Append adds a turn to the tail of the user's list.
func (m *MockBuffer) Append(ctx context.Context, userID string, turn mem.Turn) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if userID == "" {
		return errors.New("append: user id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[userID] = append(m.lists[userID], turn)
	return nil
}

// ReadAll returns the buffered turns in insertion order.
func (m *MockBuffer) ReadAll(ctx context.Context, userID string) ([]mem.Turn, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mem.Turn, len(m.lists[userID]))
	copy(out, m.lists[userID])
	return out, nil
}

// Clear deletes the entire list for the user.
func (m *MockBuffer) Clear(ctx context.Context, userID string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, userID)
	return nil
}

// Len returns the number of buffered entries for the user.
func (m *MockBuffer) Len(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lists[userID]), nil
}
