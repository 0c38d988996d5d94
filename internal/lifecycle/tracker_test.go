package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestTracker(t *testing.T) (*Tracker, *MemStore) {
	t.Helper()
	store := NewMemStore()
	tracker := NewTracker(store, WithClock(testClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))))
	return tracker, store
}

func createRecord(t *testing.T, tracker *Tracker, kind ActionKind) ActionRecord {
	t.Helper()
	record, err := tracker.Create(context.Background(), ActionRecord{
		AccountID:   "acct-1",
		CandidateID: "cand-1",
		Kind:        kind,
		Phrase:      "call maria",
		Score:       100,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return record
}

func TestTrackerCallLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tracker, _ := newTestTracker(t)
	record := createRecord(t, tracker, KindCall)

	if record.State != StateInitiated {
		t.Fatalf("Create() state = %s, want %s", record.State, StateInitiated)
	}
	if record.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}
	if got := record.Duration(time.Now()); got != 0 {
		t.Errorf("Duration() before connect = %v, want 0", got)
	}

	record, err := tracker.Transition(ctx, record.ID, StateConnected, "")
	if err != nil {
		t.Fatalf("Transition(connected) error = %v", err)
	}
	record, err = tracker.Transition(ctx, record.ID, StateCompleted, "")
	if err != nil {
		t.Fatalf("Transition(completed) error = %v", err)
	}

	if record.State != StateCompleted {
		t.Errorf("state = %s, want %s", record.State, StateCompleted)
	}
	if len(record.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(record.History))
	}
	if record.History[0].From != StateInitiated || record.History[0].To != StateConnected {
		t.Errorf("history[0] = %+v, want initiated -> connected", record.History[0])
	}
	if record.History[1].From != StateConnected || record.History[1].To != StateCompleted {
		t.Errorf("history[1] = %+v, want connected -> completed", record.History[1])
	}
	// The test clock ticks one second per call: one tick between entering
	// Connected and entering Completed.
	if got := record.Duration(time.Now()); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
}

func TestTrackerLaunchLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tracker, _ := newTestTracker(t)
	record := createRecord(t, tracker, KindLaunch)

	t.Run("no connected phase", func(t *testing.T) {
		_, err := tracker.Transition(ctx, record.ID, StateConnected, "")
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(connected) error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("completes directly", func(t *testing.T) {
		got, err := tracker.Transition(ctx, record.ID, StateCompleted, "")
		if err != nil {
			t.Fatalf("Transition(completed) error = %v", err)
		}
		if got.State != StateCompleted {
			t.Errorf("state = %s, want %s", got.State, StateCompleted)
		}
		if got.Duration(time.Now()) != 0 {
			t.Errorf("launch Duration() = %v, want 0", got.Duration(time.Now()))
		}
	})
}

func TestTrackerTerminalIsFinal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tracker, _ := newTestTracker(t)
	record := createRecord(t, tracker, KindCall)

	if _, err := tracker.Cancel(ctx, record.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	// A late connect event after cancellation must be rejected and must not
	// touch the record.
	_, err := tracker.Transition(ctx, record.ID, StateConnected, "")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("Transition() after cancel error = %v, want ErrAlreadyTerminal", err)
	}
	got, err := tracker.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateCancelled {
		t.Errorf("state = %s, want %s", got.State, StateCancelled)
	}
	if len(got.History) != 1 {
		t.Errorf("history length = %d, want 1", len(got.History))
	}
}

func TestTrackerFailureReason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tracker, _ := newTestTracker(t)

	t.Run("recorded on failed", func(t *testing.T) {
		record := createRecord(t, tracker, KindCall)
		got, err := tracker.Transition(ctx, record.ID, StateFailed, "carrier timeout")
		if err != nil {
			t.Fatalf("Transition(failed) error = %v", err)
		}
		if got.FailureReason != "carrier timeout" {
			t.Errorf("FailureReason = %q, want %q", got.FailureReason, "carrier timeout")
		}
	})

	t.Run("ignored on success", func(t *testing.T) {
		record := createRecord(t, tracker, KindLaunch)
		got, err := tracker.Transition(ctx, record.ID, StateCompleted, "stray reason")
		if err != nil {
			t.Fatalf("Transition(completed) error = %v", err)
		}
		if got.FailureReason != "" {
			t.Errorf("FailureReason = %q, want empty", got.FailureReason)
		}
	})
}

func TestTrackerConcurrentTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()
	tracker := NewTracker(store, WithClock(testClock(time.Unix(0, 0).UTC())))
	record := createRecord(t, tracker, KindCall)

	// Simulate a race: another writer completes the CAS between the
	// tracker's read and its ApplyTransition.
	_, err := store.ApplyTransition(ctx, record.ID, StateInitiated,
		TransitionEvent{From: StateInitiated, To: StateFailed, At: time.Unix(1, 0)}, "lost race")
	if err != nil {
		t.Fatalf("ApplyTransition() error = %v", err)
	}
	_, err = store.ApplyTransition(ctx, record.ID, StateInitiated,
		TransitionEvent{From: StateInitiated, To: StateConnected, At: time.Unix(2, 0)}, "")
	if !errors.Is(err, ErrStaleState) {
		t.Errorf("stale ApplyTransition() error = %v, want ErrStaleState", err)
	}
}

func TestTrackerUnknownRecord(t *testing.T) {
	t.Parallel()
	tracker, _ := newTestTracker(t)
	_, err := tracker.Transition(context.Background(), "missing", StateConnected, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Transition() error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := store.Create(ctx, ActionRecord{
			ID:        id,
			AccountID: "acct-1",
			Kind:      KindCall,
			State:     StateInitiated,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create(%q) error = %v", id, err)
		}
	}
	if err := store.Create(ctx, ActionRecord{ID: "other", AccountID: "acct-2", Kind: KindCall, State: StateInitiated, CreatedAt: base}); err != nil {
		t.Fatalf("Create(other) error = %v", err)
	}

	records, err := store.List(ctx, "acct-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(records))
	}
	for i, want := range []string{"c", "b", "a"} {
		if records[i].ID != want {
			t.Errorf("records[%d].ID = %q, want %q (newest first)", i, records[i].ID, want)
		}
	}
}
