package subscription

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no subscription state exists for an account.
var ErrNotFound = errors.New("subscription state not found")

// Store loads subscription state keyed by account ID. The engine only reads
// state; tier changes and counter resets belong to the billing collaborator.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the subscription state for accountID.
	// Returns [ErrNotFound] when the account has no subscription record.
	Get(ctx context.Context, accountID string) (State, error)
}
