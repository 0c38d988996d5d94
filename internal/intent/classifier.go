// Package intent turns a transcribed utterance into a structured command:
// the action kind (call or launch) and the spoken target phrase.
//
// Verb recognition is exact first, phonetic second. Speech transcripts
// regularly mangle the leading verb ("coll maria", "dail mom") while leaving
// it phonetically intact, so unknown verbs fall back to a Double Metaphone
// comparison against the verb table. The target phrase is passed through
// untouched apart from whitespace trimming; fuzzy matching of target names
// is deliberately not done here or anywhere downstream.
package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/voxdial/voxdial/internal/lifecycle"
)

// Classification errors.
var (
	// ErrEmptyUtterance is returned for blank input.
	ErrEmptyUtterance = errors.New("intent: empty utterance")

	// ErrUnknownVerb is returned when the leading verb matches no known
	// command, exactly or phonetically.
	ErrUnknownVerb = errors.New("intent: unknown verb")

	// ErrMissingTarget is returned when a verb was recognised but nothing
	// follows it.
	ErrMissingTarget = errors.New("intent: missing target")
)

// Intent is a recognised voice command.
type Intent struct {
	// Kind is the action the verb maps to.
	Kind lifecycle.ActionKind

	// Verb is the canonical verb that matched, not the spoken token.
	Verb string

	// Target is the remainder of the utterance, the phrase naming who or
	// what to act on.
	Target string

	// Phonetic is true when the verb was recognised by phonetic fallback
	// rather than exact match.
	Phonetic bool
}

// verbs maps canonical verbs to their action kind.
var verbs = map[string]lifecycle.ActionKind{
	"call":   lifecycle.KindCall,
	"dial":   lifecycle.KindCall,
	"phone":  lifecycle.KindCall,
	"ring":   lifecycle.KindCall,
	"open":   lifecycle.KindLaunch,
	"launch": lifecycle.KindLaunch,
	"start":  lifecycle.KindLaunch,
	"run":    lifecycle.KindLaunch,
}

// fillers are leading tokens stripped before verb recognition.
var fillers = map[string]bool{
	"please": true,
	"hey":    true,
	"ok":     true,
	"okay":   true,
}

// Classify parses an utterance into an [Intent].
func Classify(utterance string) (Intent, error) {
	fields := strings.Fields(strings.ToLower(utterance))
	for len(fields) > 0 && fillers[fields[0]] {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return Intent{}, ErrEmptyUtterance
	}

	spoken := fields[0]
	verb, kind, phonetic, ok := matchVerb(spoken)
	if !ok {
		return Intent{}, fmt.Errorf("intent: verb %q: %w", spoken, ErrUnknownVerb)
	}
	target := strings.Join(fields[1:], " ")
	if target == "" {
		return Intent{}, fmt.Errorf("intent: verb %q: %w", verb, ErrMissingTarget)
	}
	return Intent{Kind: kind, Verb: verb, Target: target, Phonetic: phonetic}, nil
}

// matchVerb resolves a spoken token to a canonical verb, exact match first,
// Double Metaphone second. A phonetic match requires agreement on the
// primary encoding; the alternate encoding alone is too permissive for
// single-word verbs.
func matchVerb(spoken string) (verb string, kind lifecycle.ActionKind, phonetic bool, ok bool) {
	if kind, ok := verbs[spoken]; ok {
		return spoken, kind, false, true
	}
	spokenCode, _ := matchr.DoubleMetaphone(spoken)
	if spokenCode == "" {
		return "", "", false, false
	}
	for candidate, kind := range verbs {
		code, _ := matchr.DoubleMetaphone(candidate)
		if code == spokenCode {
			return candidate, kind, true, true
		}
	}
	return "", "", false, false
}
