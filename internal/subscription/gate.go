package subscription

import (
	"context"
	"errors"
	"fmt"
)

// ActionType names a gated action.
type ActionType string

const (
	// ActionStartMeeting counts against the monthly meeting limit.
	ActionStartMeeting ActionType = "start_meeting"

	// ActionAddParticipant counts against the per-meeting participant limit.
	ActionAddParticipant ActionType = "add_participant"

	// ActionAIReport requires the AI reports feature.
	ActionAIReport ActionType = "ai_report"

	// ActionVoiceBiometry requires the voice biometry feature.
	ActionVoiceBiometry ActionType = "voice_biometry"

	// ActionPlaceCall is a voice-dispatched phone call. Voice dispatch rides
	// on speaker verification, so it requires the voice biometry feature.
	ActionPlaceCall ActionType = "place_call"

	// ActionLaunchApp is a voice-dispatched application launch. Gated like
	// [ActionPlaceCall].
	ActionLaunchApp ActionType = "launch_app"
)

// IsValid reports whether a is a recognised action type.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionStartMeeting, ActionAddParticipant, ActionAIReport,
		ActionVoiceBiometry, ActionPlaceCall, ActionLaunchApp:
		return true
	}
	return false
}

// State is an account's subscription snapshot: its tier plus the usage
// counters for the current billing period. Counters reset at period
// boundaries; the reset is owned by the billing collaborator, not this
// package.
type State struct {
	// AccountID is the owning account.
	AccountID string

	// Tier selects the plan in the catalog.
	Tier Tier

	// MeetingsThisMonth is the number of meetings created this period.
	MeetingsThisMonth int

	// CurrentMeetingParticipants is the participant count of the meeting in
	// progress, if any.
	CurrentMeetingParticipants int
}

// DenyReason explains why the usage gate rejected an action.
type DenyReason string

const (
	// DenyLimitExceeded means a numeric usage limit has been reached.
	DenyLimitExceeded DenyReason = "limit_exceeded"

	// DenyFeatureNotInPlan means the tier does not include the feature at all.
	DenyFeatureNotInPlan DenyReason = "feature_not_in_plan"
)

// Decision is the outcome of a usage check.
type Decision struct {
	// Allowed is true when the action fits within the plan.
	Allowed bool

	// Reason explains a denial; empty when Allowed is true.
	Reason DenyReason

	// Detail is a human-readable explanation suitable for relaying to the
	// end user.
	Detail string
}

// allow is the zero-reason approval decision.
var allow = Decision{Allowed: true}

// CheckLimit validates action against the state's tier limits and current
// usage counters. A numeric limit of [Unlimited] always passes.
//
// The check is pure: it never mutates counters. The collaborator that
// performs the approved action increments usage afterwards, so retried or
// cancelled actions are never double-counted.
func CheckLimit(state State, action ActionType) (Decision, error) {
	if !action.IsValid() {
		return Decision{}, fmt.Errorf("subscription: unknown action type %q", action)
	}

	limits := PlanFor(state.Tier).Limits

	switch action {
	case ActionStartMeeting:
		if limits.MeetingsPerMonth != Unlimited && state.MeetingsThisMonth >= limits.MeetingsPerMonth {
			return Decision{
				Reason: DenyLimitExceeded,
				Detail: fmt.Sprintf("monthly limit of %d meetings reached", limits.MeetingsPerMonth),
			}, nil
		}

	case ActionAddParticipant:
		if limits.ParticipantsPerMeeting != Unlimited && state.CurrentMeetingParticipants >= limits.ParticipantsPerMeeting {
			return Decision{
				Reason: DenyLimitExceeded,
				Detail: fmt.Sprintf("limit of %d participants per meeting reached", limits.ParticipantsPerMeeting),
			}, nil
		}

	case ActionAIReport:
		if !limits.AIReports {
			return Decision{
				Reason: DenyFeatureNotInPlan,
				Detail: "AI reports are only available on paid plans",
			}, nil
		}

	case ActionVoiceBiometry, ActionPlaceCall, ActionLaunchApp:
		if !limits.VoiceBiometry {
			return Decision{
				Reason: DenyFeatureNotInPlan,
				Detail: "voice biometry is only available on paid plans",
			}, nil
		}
	}

	return allow, nil
}

// Check loads accountID's subscription state from store and applies
// [CheckLimit]. Accounts without a subscription record run on the free
// tier. Storage failures are returned unchanged for the caller to classify.
func Check(ctx context.Context, store Store, accountID string, action ActionType) (Decision, error) {
	state, err := store.Get(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		state = State{AccountID: accountID, Tier: TierFree}
	} else if err != nil {
		return Decision{}, err
	}
	return CheckLimit(state, action)
}
