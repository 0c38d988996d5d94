package subscription

import (
	"context"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// Tests seed it through [MemStore.Put].
type MemStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		states: make(map[string]State),
	}
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, accountID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[accountID]
	if !ok {
		return State{}, ErrNotFound
	}
	return st, nil
}

// Put stores or replaces the state for its account.
func (s *MemStore) Put(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.states == nil {
		s.states = make(map[string]State)
	}
	s.states[st.AccountID] = st
}
