package biometric

import (
	"context"
	"errors"
	"fmt"
)

// DenyReason explains why the authority gate rejected a speaker.
type DenyReason string

const (
	// DenyNotEnrolled means the claimed member has not completed enrollment.
	DenyNotEnrolled DenyReason = "not_enrolled"

	// DenyInsufficientAuthority means the member is enrolled for recognition
	// only and may not issue commands.
	DenyInsufficientAuthority DenyReason = "insufficient_authority"

	// DenyLowConfidence means the observed recognition confidence fell below
	// the member's threshold.
	DenyLowConfidence DenyReason = "low_confidence"
)

// Decision is the outcome of an authority check.
type Decision struct {
	// Authorized is true when the speaker may issue commands.
	Authorized bool

	// MemberID is the authorized member; set only when Authorized is true.
	MemberID string

	// Reason explains a denial; empty when Authorized is true.
	Reason DenyReason
}

// Gate validates that a claimed speaker is enrolled and permitted to issue
// commands on an account. The gate is read-only: it never mutates profiles.
type Gate struct {
	store Store
}

// NewGate returns a [Gate] backed by store.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Authorize checks the claimed member's voice profile against the observed
// recognition confidence.
//
// Checks are applied in order: enrollment, command authority, confidence
// threshold. The first failing check determines the denial reason. A member
// with no profile at all is reported as not enrolled rather than an error —
// the distinction matters to nobody downstream, and the caller cannot fix
// either case without an enrollment flow.
//
// A non-nil error is returned only for storage failures.
func (g *Gate) Authorize(ctx context.Context, accountID, speakerClaim string, confidenceObserved float64) (Decision, error) {
	p, err := g.store.Get(ctx, speakerClaim)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{Reason: DenyNotEnrolled}, nil
		}
		return Decision{}, fmt.Errorf("biometric: authorize: %w", err)
	}

	if p.AccountID != accountID {
		// A profile on another account is treated as absent for this one.
		return Decision{Reason: DenyNotEnrolled}, nil
	}
	if !p.Enrolled() {
		return Decision{Reason: DenyNotEnrolled}, nil
	}
	if !p.CanCommand() {
		return Decision{Reason: DenyInsufficientAuthority}, nil
	}
	if confidenceObserved < p.Threshold() {
		return Decision{Reason: DenyLowConfidence}, nil
	}

	return Decision{Authorized: true, MemberID: p.MemberID}, nil
}
