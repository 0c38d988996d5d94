package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-process deployments and testing.
type MemStore struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		candidates: make(map[string]Candidate),
	}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, c Candidate) (Candidate, error) {
	if err := c.Validate(); err != nil {
		return Candidate{}, err
	}

	if c.ID == "" {
		id, err := generateID()
		if err != nil {
			return Candidate{}, fmt.Errorf("registry: generate id: %w", err)
		}
		c.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidates == nil {
		s.candidates = make(map[string]Candidate)
	}

	if _, exists := s.candidates[c.ID]; exists {
		return Candidate{}, ErrDuplicateID
	}

	s.candidates[c.ID] = c
	return c, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[id]
	if !ok {
		return Candidate{}, ErrNotFound
	}
	return c, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context, accountID string, kind Kind) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		if c.AccountID != accountID {
			continue
		}
		if kind != "" && c.Kind != kind {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, c Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.candidates[c.ID]; !ok {
		return ErrNotFound
	}

	s.candidates[c.ID] = c
	return nil
}

// RecordDispatch implements [Store.RecordDispatch].
func (s *MemStore) RecordDispatch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.candidates[id]
	if !ok {
		return ErrNotFound
	}

	c.UseCount++
	c.LastUsed = at
	s.candidates[id] = c
	return nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
