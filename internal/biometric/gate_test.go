package biometric

import (
	"context"
	"testing"
)

// seedProfile adds p to a fresh MemStore and returns the store.
func seedProfile(t *testing.T, p VoiceProfile) *MemStore {
	t.Helper()
	s := NewMemStore()
	if _, err := s.Add(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return s
}

func TestGateAuthorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	enrolled := VoiceProfile{
		MemberID:         "member-1",
		AccountID:        "acc-1",
		State:            StateEnrolled,
		Samples:          5,
		CommandAuthority: true,
	}

	t.Run("enrolled member with authority passes", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(seedProfile(t, enrolled))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.92)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Authorized || d.MemberID != "member-1" {
			t.Fatalf("want authorized member-1, got %+v", d)
		}
	})

	t.Run("unknown member denied as not enrolled", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(NewMemStore())

		d, err := gate.Authorize(ctx, "acc-1", "ghost", 0.99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Authorized || d.Reason != DenyNotEnrolled {
			t.Fatalf("want DenyNotEnrolled, got %+v", d)
		}
	})

	t.Run("partial enrollment denied", func(t *testing.T) {
		t.Parallel()
		p := enrolled
		p.State = StatePartial
		p.Samples = 2
		gate := NewGate(seedProfile(t, p))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Reason != DenyNotEnrolled {
			t.Fatalf("want DenyNotEnrolled, got %+v", d)
		}
	})

	t.Run("profile on another account treated as absent", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(seedProfile(t, enrolled))

		d, err := gate.Authorize(ctx, "acc-2", "member-1", 0.99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Reason != DenyNotEnrolled {
			t.Fatalf("want DenyNotEnrolled, got %+v", d)
		}
	})

	t.Run("recognition-only member denied authority", func(t *testing.T) {
		t.Parallel()
		p := enrolled
		p.CommandAuthority = false
		gate := NewGate(seedProfile(t, p))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Reason != DenyInsufficientAuthority {
			t.Fatalf("want DenyInsufficientAuthority, got %+v", d)
		}
	})

	t.Run("owner commands without explicit authority flag", func(t *testing.T) {
		t.Parallel()
		p := enrolled
		p.CommandAuthority = false
		p.Owner = true
		gate := NewGate(seedProfile(t, p))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.99)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Authorized {
			t.Fatalf("want owner authorized, got %+v", d)
		}
	})

	t.Run("confidence below threshold denied", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(seedProfile(t, enrolled))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.80)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Reason != DenyLowConfidence {
			t.Fatalf("want DenyLowConfidence, got %+v", d)
		}
	})

	t.Run("custom threshold respected", func(t *testing.T) {
		t.Parallel()
		p := enrolled
		p.ConfidenceThreshold = 0.60
		gate := NewGate(seedProfile(t, p))

		d, err := gate.Authorize(ctx, "acc-1", "member-1", 0.65)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Authorized {
			t.Fatalf("want authorized at 0.65 against threshold 0.60, got %+v", d)
		}
	})
}
