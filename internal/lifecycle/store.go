package lifecycle

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	// ErrNotFound is returned when no record exists for the given ID.
	ErrNotFound = errors.New("lifecycle: record not found")

	// ErrStaleState is returned by [Store.ApplyTransition] when the record's
	// persisted state no longer matches the expected state, meaning a
	// concurrent transition won.
	ErrStaleState = errors.New("lifecycle: record state changed concurrently")
)

// Store persists action records. Implementations must make ApplyTransition
// atomic per record: the state swap and the history append either both
// happen or neither does.
type Store interface {
	// Create persists a new record in its initial state.
	Create(ctx context.Context, record ActionRecord) error

	// Get returns the record with the given ID or [ErrNotFound].
	Get(ctx context.Context, id string) (ActionRecord, error)

	// List returns all records for an account, newest first.
	List(ctx context.Context, accountID string) ([]ActionRecord, error)

	// ApplyTransition moves the record from expected to event.To, appending
	// event to its history and recording failureReason when non-empty. It
	// returns [ErrStaleState] when the persisted state is not expected, and
	// [ErrNotFound] when the record does not exist.
	ApplyTransition(ctx context.Context, id string, expected State, event TransitionEvent, failureReason string) (ActionRecord, error)
}

// clock is the time source used for transition timestamps, replaceable in
// tests.
type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
