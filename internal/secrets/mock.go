package secrets

import (
	"context"
	"fmt"
	"sync"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu      sync.Mutex
	Secrets map[string]string
	// Err, when set, is returned from every call.
	Err   error
	Calls int
}

func NewMockStore() *MockStore {
	return &MockStore{Secrets: make(map[string]string)}
}

func (m *MockStore) GetSecret(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	v, ok := m.Secrets[id]
	if !ok {
		return "", fmt.Errorf("mock: get %q: %w", id, ErrNotFound)
	}
	return v, nil
}
