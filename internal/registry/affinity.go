package registry

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// ListByAffinity returns the candidates owned by accountID, optionally
// narrowed to a single kind, ordered by how likely the account is to pick
// them: favorites first, then by descending use count, then by most recent
// dispatch, then by canonical name (case-insensitive). The ordering is
// intended for pickers and suggestion lists; resolution scoring does not
// depend on it.
func ListByAffinity(ctx context.Context, store Store, accountID string, kind Kind) ([]Candidate, error) {
	candidates, err := store.List(ctx, accountID, kind)
	if err != nil {
		return nil, fmt.Errorf("registry: list by affinity: %w", err)
	}
	SortByAffinity(candidates)
	return candidates, nil
}

// SortByAffinity sorts candidates in place using the [ListByAffinity] order.
// The sort is stable, so candidates that compare equal keep their input order.
func SortByAffinity(candidates []Candidate) {
	slices.SortStableFunc(candidates, compareAffinity)
}

func compareAffinity(a, b Candidate) int {
	if a.Favorite != b.Favorite {
		if a.Favorite {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(b.UseCount, a.UseCount); c != 0 {
		return c
	}
	if c := b.LastUsed.Compare(a.LastUsed); c != 0 {
		return c
	}
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}
