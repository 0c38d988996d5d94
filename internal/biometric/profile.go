// Package biometric manages voice biometric enrollment and the speaker
// authority gate. Each account member owns at most one [VoiceProfile];
// enrollment submissions accumulate voice samples until the profile reaches
// the enrolled state, after which the member can pass the authority gate.
//
// The gate itself never mutates profiles. Authority flags (owner, command
// authority) are set administratively through the store.
package biometric

import "time"

// DefaultRequiredSamples is the number of accepted samples needed to
// complete enrollment.
const DefaultRequiredSamples = 5

// DefaultConfidenceThreshold is the minimum recognition confidence a
// speaker must reach to pass the authority gate.
const DefaultConfidenceThreshold = 0.85

// ownerQualityBonus is added to the quality score of samples submitted by
// the account owner.
const ownerQualityBonus = 0.05

// EnrollmentState tracks how far a member has progressed through voice
// enrollment.
type EnrollmentState string

const (
	// StatePending means no samples have been accepted yet.
	StatePending EnrollmentState = "pending"

	// StatePartial means some, but not enough, samples have been accepted.
	StatePartial EnrollmentState = "partial"

	// StateEnrolled means the required sample count has been reached.
	StateEnrolled EnrollmentState = "enrolled"
)

// IsValid reports whether s is a recognised enrollment state.
func (s EnrollmentState) IsValid() bool {
	switch s {
	case StatePending, StatePartial, StateEnrolled:
		return true
	}
	return false
}

// VoiceProfile is the enrollment and authority record for one account member.
type VoiceProfile struct {
	// MemberID identifies the account member this profile belongs to.
	MemberID string

	// AccountID is the owning account.
	AccountID string

	// State is derived from Samples vs RequiredSamples and updated on every
	// accepted enrollment submission.
	State EnrollmentState

	// Samples is the number of accepted enrollment samples.
	Samples int

	// RequiredSamples is the sample count needed to reach [StateEnrolled].
	RequiredSamples int

	// ConfidenceThreshold is the minimum observed recognition confidence
	// required to pass the authority gate.
	ConfidenceThreshold float64

	// Owner marks the account owner. Owners always carry command authority.
	Owner bool

	// CommandAuthority permits the member to issue voice commands.
	// Recognition-only members may be enrolled without it.
	CommandAuthority bool

	// Quality is the best sample quality score accepted so far, in [0, 1].
	Quality float64

	// Voiceprint is the running mean of accepted sample feature vectors.
	Voiceprint []float32

	// EnrolledAt is when the profile reached [StateEnrolled]; zero before that.
	EnrolledAt time.Time
}

// Progress returns the enrollment completion percentage, capped at 100.
// It is safe to query at any time and is monotonic in the sample count.
func (p VoiceProfile) Progress() int {
	required := p.RequiredSamples
	if required <= 0 {
		required = DefaultRequiredSamples
	}
	pct := p.Samples * 100 / required
	return min(100, pct)
}

// Enrolled reports whether the profile has completed enrollment.
func (p VoiceProfile) Enrolled() bool {
	return p.State == StateEnrolled
}

// CanCommand reports whether the member may issue voice commands.
// The owner always can; other members need the command-authority flag.
func (p VoiceProfile) CanCommand() bool {
	return p.Owner || p.CommandAuthority
}

// Threshold returns the effective confidence threshold, falling back to
// [DefaultConfidenceThreshold] when unset.
func (p VoiceProfile) Threshold() float64 {
	if p.ConfidenceThreshold <= 0 {
		return DefaultConfidenceThreshold
	}
	return p.ConfidenceThreshold
}

// QualityGrade maps the profile's quality score to a human-readable label.
func (p VoiceProfile) QualityGrade() string {
	switch {
	case p.Quality > 0.9:
		return "excellent"
	case p.Quality > 0.7:
		return "good"
	default:
		return "fair"
	}
}
