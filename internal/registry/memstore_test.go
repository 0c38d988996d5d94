package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCandidateValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid contact", func(t *testing.T) {
		t.Parallel()
		c := Candidate{AccountID: "acc-1", Kind: KindContact, Name: "Maria Silva"}
		if err := c.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		t.Parallel()
		c := Candidate{AccountID: "acc-1", Kind: KindContact, Name: "   "}
		if err := c.Validate(); err == nil {
			t.Fatal("want validation error for empty name")
		}
	})

	t.Run("invalid kind rejected", func(t *testing.T) {
		t.Parallel()
		c := Candidate{AccountID: "acc-1", Kind: "widget", Name: "Spotify"}
		if err := c.Validate(); err == nil {
			t.Fatal("want validation error for invalid kind")
		}
	})

	t.Run("duplicate aliases rejected case-insensitively", func(t *testing.T) {
		t.Parallel()
		c := Candidate{
			AccountID: "acc-1",
			Kind:      KindContact,
			Name:      "João",
			Aliases:   []string{"joão santos", "João Santos"},
		}
		if err := c.Validate(); err == nil {
			t.Fatal("want validation error for duplicate aliases")
		}
	})
}

func TestCandidateFirstToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"Maria Silva", "maria"},
		{"João", "joão"},
		{"  Spotify  Premium ", "spotify"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := (Candidate{Name: tt.name}).FirstToken(); got != tt.want {
			t.Errorf("FirstToken(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMemStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("add generates id and get round-trips", func(t *testing.T) {
		t.Parallel()
		s := NewMemStore()

		added, err := s.Add(ctx, Candidate{AccountID: "acc-1", Kind: KindContact, Name: "Maria Silva"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added.ID == "" {
			t.Fatal("want generated ID")
		}

		got, err := s.Get(ctx, added.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "Maria Silva" {
			t.Fatalf("want Maria Silva, got %s", got.Name)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		t.Parallel()
		s := NewMemStore()

		c := Candidate{ID: "c-1", AccountID: "acc-1", Kind: KindContact, Name: "Maria"}
		if _, err := s.Add(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := s.Add(ctx, c); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("want ErrDuplicateID, got %v", err)
		}
	})

	t.Run("list filters by account and kind", func(t *testing.T) {
		t.Parallel()
		s := NewMemStore()

		seed := []Candidate{
			{ID: "c-1", AccountID: "acc-1", Kind: KindContact, Name: "Maria"},
			{ID: "c-2", AccountID: "acc-1", Kind: KindApplication, Name: "Spotify"},
			{ID: "c-3", AccountID: "acc-2", Kind: KindContact, Name: "Pedro"},
		}
		for _, c := range seed {
			if _, err := s.Add(ctx, c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		contacts, err := s.List(ctx, "acc-1", KindContact)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(contacts) != 1 || contacts[0].ID != "c-1" {
			t.Fatalf("want [c-1], got %v", contacts)
		}

		all, err := s.List(ctx, "acc-1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("want 2 candidates, got %d", len(all))
		}
	})

	t.Run("record dispatch bumps counter and timestamp", func(t *testing.T) {
		t.Parallel()
		s := NewMemStore()

		if _, err := s.Add(ctx, Candidate{ID: "c-1", AccountID: "acc-1", Kind: KindContact, Name: "Maria"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		if err := s.RecordDispatch(ctx, "c-1", at); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := s.Get(ctx, "c-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.UseCount != 1 {
			t.Fatalf("want use count 1, got %d", got.UseCount)
		}
		if !got.LastUsed.Equal(at) {
			t.Fatalf("want last used %v, got %v", at, got.LastUsed)
		}
	})

	t.Run("record dispatch on unknown id", func(t *testing.T) {
		t.Parallel()
		s := NewMemStore()
		if err := s.RecordDispatch(ctx, "nope", time.Now()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})
}
