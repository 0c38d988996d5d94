package intent

import (
	"errors"
	"testing"

	"github.com/voxdial/voxdial/internal/lifecycle"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		utterance string
		wantKind  lifecycle.ActionKind
		wantVerb  string
		wantText  string
		phonetic  bool
	}{
		{"call verb", "call Maria Lopez", lifecycle.KindCall, "call", "maria lopez", false},
		{"dial verb", "dial mom", lifecycle.KindCall, "dial", "mom", false},
		{"launch verb", "open spotify", lifecycle.KindLaunch, "open", "spotify", false},
		{"start verb", "start the timer app", lifecycle.KindLaunch, "start", "the timer app", false},
		{"leading filler", "hey call maria", lifecycle.KindCall, "call", "maria", false},
		{"stacked fillers", "okay please ring dad", lifecycle.KindCall, "ring", "dad", false},
		{"misheard call", "coll maria", lifecycle.KindCall, "call", "maria", true},
		{"misheard dial", "dail mom", lifecycle.KindCall, "dial", "mom", true},
		{"mixed case", "CALL Maria", lifecycle.KindCall, "call", "maria", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Classify(tt.utterance)
			if err != nil {
				t.Fatalf("Classify(%q) error = %v", tt.utterance, err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Verb != tt.wantVerb {
				t.Errorf("Verb = %q, want %q", got.Verb, tt.wantVerb)
			}
			if got.Target != tt.wantText {
				t.Errorf("Target = %q, want %q", got.Target, tt.wantText)
			}
			if got.Phonetic != tt.phonetic {
				t.Errorf("Phonetic = %v, want %v", got.Phonetic, tt.phonetic)
			}
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		utterance string
		wantErr   error
	}{
		{"empty", "", ErrEmptyUtterance},
		{"whitespace only", "   ", ErrEmptyUtterance},
		{"fillers only", "hey okay please", ErrEmptyUtterance},
		{"unknown verb", "weather in berlin", ErrUnknownVerb},
		{"verb without target", "call", ErrMissingTarget},
		{"filler then bare verb", "please open", ErrMissingTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Classify(tt.utterance)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Classify(%q) error = %v, want %v", tt.utterance, err, tt.wantErr)
			}
		})
	}
}
