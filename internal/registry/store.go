package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested candidate does not exist.
var ErrNotFound = errors.New("candidate not found")

// ErrDuplicateID is returned by Add when a candidate with the same ID already exists.
var ErrDuplicateID = errors.New("candidate with that ID already exists")

// Store manages candidate records for voice command resolution.
//
// All implementations must be safe for concurrent use and must provide
// read-committed consistency per account.
type Store interface {
	// Add creates a new candidate. Returns the candidate with a generated ID
	// if the provided candidate's ID is empty.
	// Returns [ErrDuplicateID] if a candidate with the same non-empty ID exists.
	Add(ctx context.Context, c Candidate) (Candidate, error)

	// Get retrieves a candidate by ID.
	// Returns [ErrNotFound] when no candidate with that ID exists.
	Get(ctx context.Context, id string) (Candidate, error)

	// List returns the candidates owned by accountID, optionally narrowed to
	// a single kind. An empty kind matches both contacts and applications.
	// Results order is not guaranteed.
	List(ctx context.Context, accountID string, kind Kind) ([]Candidate, error)

	// Update replaces an existing candidate. The candidate's ID must be
	// non-empty. Returns [ErrNotFound] when no candidate with that ID exists.
	Update(ctx context.Context, c Candidate) error

	// RecordDispatch marks a successful dispatch to the candidate: the use
	// counter is incremented and the last-used timestamp set to at.
	// Returns [ErrNotFound] when no candidate with that ID exists.
	RecordDispatch(ctx context.Context, id string, at time.Time) error
}
