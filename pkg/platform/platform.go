// Package platform defines the interface to the telephony/OS layer that
// actually places calls and launches applications.
//
// The resolution engine never talks to carriers or operating systems itself;
// it resolves an utterance to a target, records the action, and hands the
// dispatch to a [Dispatcher]. Implementations report progress back through
// the lifecycle transition entry point, which is why the dispatch methods
// carry the action record ID.
//
// This package lives under pkg/ because external code (telephony gateways,
// desktop agents) is expected to implement [Dispatcher].
package platform

import "context"

// CallHandle identifies an in-flight call at the telephony layer, used to
// cancel it.
type CallHandle string

// Dispatcher performs resolved actions on the outside world.
//
// Both methods are fire-and-forget from the engine's point of view: they
// return once the action has been handed to the underlying platform, not
// when it finishes. Completion, failure and connection events arrive later
// as lifecycle transitions keyed by recordID.
type Dispatcher interface {
	// PlaceCall starts dialing the contact's address (a phone number or
	// platform URI). The returned handle can be passed to CancelCall while
	// the call is live.
	PlaceCall(ctx context.Context, recordID, address string) (CallHandle, error)

	// LaunchApp starts the named application.
	LaunchApp(ctx context.Context, recordID, appName string) error

	// CancelCall tears down a call previously started with PlaceCall.
	// Cancelling an already finished call is a no-op.
	CancelCall(ctx context.Context, handle CallHandle) error
}
