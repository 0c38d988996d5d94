package biometric

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile exists for the requested member.
var ErrNotFound = errors.New("voice profile not found")

// ErrDuplicateMember is returned by Add when the member already has a profile.
var ErrDuplicateMember = errors.New("member already has a voice profile")

// ErrStaleProfile is returned by UpdateIfSamples when the stored sample
// count no longer matches the expected one, meaning a concurrent submission
// got there first.
var ErrStaleProfile = errors.New("voice profile changed concurrently")

// Store persists voice profiles keyed by member ID.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add creates a profile for a member. Zero RequiredSamples and
	// ConfidenceThreshold are replaced with the package defaults; an empty
	// State becomes [StatePending].
	// Returns [ErrDuplicateMember] when the member already has a profile.
	Add(ctx context.Context, p VoiceProfile) (VoiceProfile, error)

	// Get retrieves the profile for memberID.
	// Returns [ErrNotFound] when the member has no profile.
	Get(ctx context.Context, memberID string) (VoiceProfile, error)

	// List returns all profiles on accountID. Results order is not guaranteed.
	List(ctx context.Context, accountID string) ([]VoiceProfile, error)

	// Update replaces an existing profile.
	// Returns [ErrNotFound] when the member has no profile.
	Update(ctx context.Context, p VoiceProfile) error

	// UpdateIfSamples replaces an existing profile only while its stored
	// sample count still equals expectedSamples, serialising concurrent
	// enrollment submissions for the same member.
	// Returns [ErrStaleProfile] when the count moved, [ErrNotFound] when
	// the member has no profile.
	UpdateIfSamples(ctx context.Context, p VoiceProfile, expectedSamples int) error
}

// applyDefaults fills zero-valued tunables on a new profile.
func applyDefaults(p VoiceProfile) VoiceProfile {
	if p.RequiredSamples <= 0 {
		p.RequiredSamples = DefaultRequiredSamples
	}
	if p.ConfidenceThreshold <= 0 {
		p.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if p.State == "" {
		p.State = StatePending
	}
	return p
}
