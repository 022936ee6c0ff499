package store

import (
	"context"
	"sync"
)

// MockRateLimitStore
type MockRateLimitStore struct {
	mu  sync.Mutex
	RPM map[string]int64
	// Allow forcing errors for testing
	Err error
}

func NewMockRateLimitStore() *MockRateLimitStore {
	return &MockRateLimitStore{RPM: make(map[string]int64)}
}

func (m *MockRateLimitStore) IncrementRPM(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.RPM[key]++
	return m.RPM[key], nil
}
