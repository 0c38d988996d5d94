package resolve

import (
	"errors"
	"fmt"
)

// Kind classifies why a resolution failed. Every denial a caller can see
// maps to exactly one kind so the surrounding service layer can explain it
// to the end user.
type Kind string

const (
	// KindNotEnrolled means the claimed speaker has no completed voice
	// enrollment on the account.
	KindNotEnrolled Kind = "not_enrolled"

	// KindInsufficientAuthority means the speaker is enrolled for
	// recognition but not permitted to issue commands.
	KindInsufficientAuthority Kind = "insufficient_authority"

	// KindLowConfidence means the observed voice-match confidence fell
	// below the profile's threshold.
	KindLowConfidence Kind = "low_confidence"

	// KindLimitExceeded means the account's plan limit for the action is
	// used up.
	KindLimitExceeded Kind = "limit_exceeded"

	// KindFeatureNotInPlan means the action requires a plan feature the
	// account's tier does not include.
	KindFeatureNotInPlan Kind = "feature_not_in_plan"

	// KindNoMatch means the utterance could not be understood as a command
	// or the account has no candidates of the required kind.
	KindNoMatch Kind = "no_match"

	// KindAmbiguousZeroScore means candidates were available but no scoring
	// rule fired for any of them.
	KindAmbiguousZeroScore Kind = "ambiguous_zero_score"

	// KindInvalidTransition means a lifecycle transition was not permitted
	// from the record's current state.
	KindInvalidTransition Kind = "invalid_transition"

	// KindAlreadyTerminal means the record had already reached a terminal
	// state.
	KindAlreadyTerminal Kind = "already_terminal"

	// KindStorageUnavailable means a storage collaborator failed; the
	// caller may retry, no partial mutation was made.
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Error is a typed resolution failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Stage names the pipeline stage that failed: "authority", "intent",
	// "usage", "scorer", "lifecycle" or "storage".
	Stage string

	// Detail is a human-readable explanation.
	Detail string

	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("resolve: %s: %s", e.Stage, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, or "" when err is not a
// resolution error.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

func newError(kind Kind, stage, detail string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: detail, Err: err}
}
