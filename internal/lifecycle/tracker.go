package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxdial/voxdial/internal/observe"
)

// Tracker errors.
var (
	// ErrInvalidTransition is returned when the target state is not
	// reachable from the record's current live state, or when a concurrent
	// transition changed the state underneath the caller.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")

	// ErrAlreadyTerminal is returned when a transition is requested on a
	// record that has already reached a terminal state.
	ErrAlreadyTerminal = errors.New("lifecycle: record already terminal")
)

// Tracker drives action records through their state machine on top of a
// [Store]. All methods are safe for concurrent use when the store is.
type Tracker struct {
	store   Store
	logger  *slog.Logger
	metrics *observe.Metrics
	now     clock
}

// TrackerOption configures a [Tracker].
type TrackerOption func(*Tracker)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker returns a tracker persisting through store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store: store,
		now:   systemClock,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// Create persists a new record in [StateInitiated] and returns it. The kind
// must be valid; state, history and creation time are set here regardless of
// what the caller filled in.
func (t *Tracker) Create(ctx context.Context, record ActionRecord) (ActionRecord, error) {
	if !record.Kind.IsValid() {
		return ActionRecord{}, fmt.Errorf("lifecycle: create: unknown action kind %q", record.Kind)
	}
	if record.ID == "" {
		record.ID = generateID()
	}
	record.State = StateInitiated
	record.History = nil
	record.FailureReason = ""
	record.CreatedAt = t.now()
	if err := t.store.Create(ctx, record); err != nil {
		return ActionRecord{}, err
	}
	t.metrics.ActiveRecords.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(record.Kind))))
	t.logger.Info("action record created",
		"record_id", record.ID,
		"account_id", record.AccountID,
		"kind", record.Kind,
		"candidate_id", record.CandidateID,
	)
	return record, nil
}

// Get returns the record with the given ID.
func (t *Tracker) Get(ctx context.Context, id string) (ActionRecord, error) {
	return t.store.Get(ctx, id)
}

// List returns all records for an account, newest first.
func (t *Tracker) List(ctx context.Context, accountID string) ([]ActionRecord, error) {
	return t.store.List(ctx, accountID)
}

// Transition moves the record to target. It returns [ErrAlreadyTerminal]
// when the record has already finished, and [ErrInvalidTransition] when the
// record's kind does not permit the move from its live state or when a
// concurrent transition won the race. failureReason is recorded only for
// moves into [StateFailed].
func (t *Tracker) Transition(ctx context.Context, id string, target State, failureReason string) (ActionRecord, error) {
	if !target.IsValid() {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q: unknown state %q", id, target)
	}
	if target != StateFailed {
		failureReason = ""
	}
	record, err := t.store.Get(ctx, id)
	if err != nil {
		return ActionRecord{}, err
	}
	if record.State.Terminal() {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q to %s from %s: %w", id, target, record.State, ErrAlreadyTerminal)
	}
	if !record.CanTransition(target) {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q: %s %s -> %s: %w", id, record.Kind, record.State, target, ErrInvalidTransition)
	}
	event := TransitionEvent{From: record.State, To: target, At: t.now()}
	updated, err := t.store.ApplyTransition(ctx, id, record.State, event, failureReason)
	if errors.Is(err, ErrStaleState) {
		return ActionRecord{}, fmt.Errorf("lifecycle: transition %q: %s -> %s: %w", id, record.State, target, ErrInvalidTransition)
	}
	if err != nil {
		return ActionRecord{}, err
	}
	t.metrics.RecordTransition(ctx, string(updated.Kind), string(target))
	if target.Terminal() {
		t.metrics.ActiveRecords.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", string(updated.Kind))))
	}
	t.logger.Info("action record transitioned",
		"record_id", updated.ID,
		"from", event.From,
		"to", event.To,
		"kind", updated.Kind,
	)
	return updated, nil
}

// Cancel moves the record to [StateCancelled]. Cancellation is reachable
// from every non-terminal state, so this is a thin wrapper over Transition.
func (t *Tracker) Cancel(ctx context.Context, id string) (ActionRecord, error) {
	return t.Transition(ctx, id, StateCancelled, "")
}
