package biometric

import (
	"context"
	"slices"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-process deployments and testing.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]VoiceProfile // member id → profile
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		profiles: make(map[string]VoiceProfile),
	}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, p VoiceProfile) (VoiceProfile, error) {
	p = applyDefaults(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profiles == nil {
		s.profiles = make(map[string]VoiceProfile)
	}

	if _, exists := s.profiles[p.MemberID]; exists {
		return VoiceProfile{}, ErrDuplicateMember
	}

	s.profiles[p.MemberID] = p
	return p, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, memberID string) (VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[memberID]
	if !ok {
		return VoiceProfile{}, ErrNotFound
	}
	p.Voiceprint = slices.Clone(p.Voiceprint)
	return p, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context, accountID string) ([]VoiceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]VoiceProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.AccountID != accountID {
			continue
		}
		p.Voiceprint = slices.Clone(p.Voiceprint)
		result = append(result, p)
	}
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, p VoiceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.MemberID]; !ok {
		return ErrNotFound
	}

	p.Voiceprint = slices.Clone(p.Voiceprint)
	s.profiles[p.MemberID] = p
	return nil
}

// UpdateIfSamples implements [Store.UpdateIfSamples].
func (s *MemStore) UpdateIfSamples(ctx context.Context, p VoiceProfile, expectedSamples int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[p.MemberID]
	if !ok {
		return ErrNotFound
	}
	if current.Samples != expectedSamples {
		return ErrStaleProfile
	}

	p.Voiceprint = slices.Clone(p.Voiceprint)
	s.profiles[p.MemberID] = p
	return nil
}
