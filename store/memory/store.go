// Package memory provides an in-memory implementation of the Store interface.
// It uses a map[string][]byte with sync.RWMutex for thread-safe access and is
// suitable for examples, testing, and single-session use without persistence
// requirements.
package memory

import (
	"context"
	"sync"

	stakekit "github.com/solstake/stakekit-go"
)

// Store is an in-memory implementation of stakekit.Store.
type Store struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		values: make(map[string][]byte),
	}
}

// Get retrieves the value for key. A missing key returns (nil, false, nil).
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return nil, false, nil
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true, nil
}

// Put stores value under key, replacing any existing value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	s.values[key] = cp
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Verify that Store implements stakekit.Store
var _ stakekit.Store = (*Store)(nil)
