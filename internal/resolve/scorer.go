package resolve

import (
	"slices"
	"strings"

	"github.com/voxdial/voxdial/internal/registry"
)

// Scoring rule values. Rules are independent and cumulative: a candidate
// matching several rules gets their sum, which may exceed 100. Only literal
// and substring rules are used; edit-distance and phonetic matching of
// candidate names is intentionally out.
const (
	scoreExactName   = 100
	scoreDisplayName = 95
	scoreAliasExact  = 90
	scoreFirstToken  = 85
	scoreNameSubstr  = 80
	scoreAliasSubstr = 70
)

// Match pairs a candidate with its computed score.
type Match struct {
	Candidate registry.Candidate
	Score     int
}

// Score computes a match score for every candidate against the utterance
// and returns the matches ordered best first. Ordering is fully
// deterministic: higher score wins, ties prefer the favorite-flagged
// candidate, then the most recently used, then lexicographic order on
// canonical name. Candidates scoring zero are included, ordered last, so
// callers can distinguish an empty set from an all-zero one.
func Score(candidates []registry.Candidate, utterance string) []Match {
	utterance = strings.ToLower(strings.TrimSpace(utterance))
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, Match{Candidate: c, Score: scoreCandidate(c, utterance)})
	}
	slices.SortStableFunc(matches, compareMatches)
	return matches
}

func scoreCandidate(c registry.Candidate, utterance string) int {
	if utterance == "" {
		return 0
	}
	name := strings.ToLower(c.Name)
	score := 0
	if utterance == name {
		score += scoreExactName
	}
	// Each string is credited once at its strongest rule: the containment
	// rules require a proper substring, and the first-token rule only
	// applies to multi-token names, so an exact name match stays at 100.
	if display := strings.ToLower(c.DisplayName); display != "" && display != name && utterance == display {
		score += scoreDisplayName
	}
	if first := c.FirstToken(); first != name && utterance == first {
		score += scoreFirstToken
	}
	if utterance != name && strings.Contains(name, utterance) {
		score += scoreNameSubstr
	}
	aliasExact, aliasSubstr := false, false
	for _, alias := range c.Aliases {
		alias = strings.ToLower(alias)
		if utterance == alias {
			aliasExact = true
		} else if strings.Contains(alias, utterance) {
			aliasSubstr = true
		}
	}
	if aliasExact {
		score += scoreAliasExact
	}
	if aliasSubstr {
		score += scoreAliasSubstr
	}
	return score
}

// compareMatches orders a before b when a is the better match.
func compareMatches(a, b Match) int {
	if a.Score != b.Score {
		return b.Score - a.Score
	}
	if a.Candidate.Favorite != b.Candidate.Favorite {
		if a.Candidate.Favorite {
			return -1
		}
		return 1
	}
	if !a.Candidate.LastUsed.Equal(b.Candidate.LastUsed) {
		return b.Candidate.LastUsed.Compare(a.Candidate.LastUsed)
	}
	return strings.Compare(strings.ToLower(a.Candidate.Name), strings.ToLower(b.Candidate.Name))
}
