// Package lifecycle tracks dispatched voice actions (calls and app launches)
// through a bounded state machine, persisted as append-only records.
//
// A call moves Initiated → Connected → Completed, with Failed and Cancelled
// reachable before a terminal state. A launch has no connected phase and
// moves straight from Initiated to a terminal state. Records never lose
// history: every transition appends an event, and nothing overwrites prior
// timestamps.
//
// Transitions on the same record are serialised by a compare-and-swap on the
// current state; a stale transition attempt is rejected rather than silently
// overwriting a concurrent one.
package lifecycle

import (
	"time"
)

// ActionKind distinguishes dialed calls from application launches.
type ActionKind string

const (
	// KindCall is a phone call placed through the telephony collaborator.
	KindCall ActionKind = "call"

	// KindLaunch is an application launch through the OS collaborator.
	KindLaunch ActionKind = "launch"
)

// IsValid reports whether k is a recognised action kind.
func (k ActionKind) IsValid() bool {
	return k == KindCall || k == KindLaunch
}

// State is a lifecycle state of an action record.
type State string

const (
	// StateInitiated is the entry state of every record.
	StateInitiated State = "initiated"

	// StateConnected means the call was answered. Calls only.
	StateConnected State = "connected"

	// StateCompleted is the terminal success state. For launches this is
	// reached directly from Initiated.
	StateCompleted State = "completed"

	// StateFailed is the terminal failure state.
	StateFailed State = "failed"

	// StateCancelled is the terminal state reached by an explicit
	// cancellation request.
	StateCancelled State = "cancelled"
)

// IsValid reports whether s is a recognised state.
func (s State) IsValid() bool {
	switch s {
	case StateInitiated, StateConnected, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// TransitionEvent is one appended history entry.
type TransitionEvent struct {
	// From is the state the record left.
	From State `json:"from"`

	// To is the state the record entered.
	To State `json:"to"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}

// ActionRecord is the persisted, append-only lifecycle trace of one
// dispatched action.
type ActionRecord struct {
	// ID is a unique identifier. Auto-generated if empty during Create.
	ID string

	// AccountID is the owning account.
	AccountID string

	// CandidateID is the resolved target.
	CandidateID string

	// Kind distinguishes calls from launches.
	Kind ActionKind

	// Phrase is the originating utterance text.
	Phrase string

	// Score is the match score the target resolved with.
	Score int

	// State is the current lifecycle state.
	State State

	// History holds every transition the record has passed through, oldest
	// first. Creation does not append an event; CreatedAt covers it.
	History []TransitionEvent

	// FailureReason explains a Failed state; empty otherwise.
	FailureReason string

	// CreatedAt is when the record entered Initiated.
	CreatedAt time.Time
}

// transitions is the fixed per-kind state machine table.
var transitions = map[ActionKind]map[State][]State{
	KindCall: {
		StateInitiated: {StateConnected, StateFailed, StateCancelled},
		StateConnected: {StateCompleted, StateFailed, StateCancelled},
	},
	KindLaunch: {
		StateInitiated: {StateCompleted, StateFailed, StateCancelled},
	},
}

// CanTransition reports whether the record's kind permits moving from its
// current state to target.
func (r ActionRecord) CanTransition(target State) bool {
	allowed, ok := transitions[r.Kind][r.State]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// ConnectedAt returns when the record entered Connected, or the zero time.
func (r ActionRecord) ConnectedAt() time.Time {
	return r.enteredAt(StateConnected)
}

// EndedAt returns when the record entered a terminal state, or the zero time.
func (r ActionRecord) EndedAt() time.Time {
	for _, ev := range r.History {
		if ev.To.Terminal() {
			return ev.At
		}
	}
	return time.Time{}
}

// Duration derives the call duration at the given instant: end minus
// connected when both are known, now minus connected for a live call, and
// zero before the call connects. Durations are never stored.
func (r ActionRecord) Duration(now time.Time) time.Duration {
	connected := r.ConnectedAt()
	if connected.IsZero() {
		return 0
	}
	if ended := r.EndedAt(); !ended.IsZero() {
		return ended.Sub(connected)
	}
	return now.Sub(connected)
}

// enteredAt returns the timestamp of the first transition into s.
func (r ActionRecord) enteredAt(s State) time.Time {
	for _, ev := range r.History {
		if ev.To == s {
			return ev.At
		}
	}
	return time.Time{}
}
