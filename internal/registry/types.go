// Package registry manages the per-account candidate set for voice command
// resolution. A candidate is either a contact (dialable person) or an
// application (launchable program); both are addressed by spoken name.
//
// Candidates are owned exclusively by their account. The engine mutates them
// only through [Store.RecordDispatch] (use counter and last-used timestamp);
// creation and deletion belong to the surrounding service layer.
//
// All store implementations are safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind classifies a candidate as a dialable contact or a launchable application.
type Kind string

const (
	// KindContact represents a person reachable by phone call.
	KindContact Kind = "contact"

	// KindApplication represents an installed application that can be launched.
	KindApplication Kind = "application"
)

// IsValid reports whether k is a recognised candidate kind.
func (k Kind) IsValid() bool {
	return k == KindContact || k == KindApplication
}

// Candidate is a single resolvable target: a contact or an application
// registered on an account.
type Candidate struct {
	// ID is a unique identifier. Auto-generated if empty during Add.
	ID string `yaml:"id" json:"id"`

	// AccountID is the owning account.
	AccountID string `yaml:"account_id" json:"account_id"`

	// Kind distinguishes contacts from applications.
	Kind Kind `yaml:"kind" json:"kind"`

	// Name is the canonical name. Must be non-empty.
	Name string `yaml:"name" json:"name"`

	// DisplayName is an optional label shown in place of Name.
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`

	// Address is how the platform layer reaches the candidate: a phone
	// number or URI for contacts, unused for applications (launches are
	// keyed by name).
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Aliases are alternative spoken names, unique within the candidate.
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`

	// Favorite marks a preferred candidate; favorites win score ties.
	Favorite bool `yaml:"favorite,omitempty" json:"favorite,omitempty"`

	// UseCount is incremented on every successful dispatch.
	UseCount int `yaml:"use_count,omitempty" json:"use_count,omitempty"`

	// LastUsed is the time of the most recent successful dispatch.
	LastUsed time.Time `yaml:"last_used,omitzero" json:"last_used,omitzero"`
}

// FirstToken returns the first whitespace-separated word of the canonical
// name, lowercased. For "Maria Silva" this is "maria". Returns "" when the
// name is empty or all whitespace.
func (c Candidate) FirstToken() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Validate checks the candidate's structural invariants: non-empty canonical
// name, valid kind, and aliases unique within the candidate (case-insensitive).
// It returns a joined error listing all violations found.
func (c Candidate) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("registry: candidate name must be non-empty"))
	}
	if !c.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("registry: kind %q is invalid; valid values: contact, application", c.Kind))
	}

	seen := make([]string, 0, len(c.Aliases))
	for _, alias := range c.Aliases {
		lower := strings.ToLower(strings.TrimSpace(alias))
		if lower == "" {
			errs = append(errs, errors.New("registry: alias must be non-empty"))
			continue
		}
		if slices.Contains(seen, lower) {
			errs = append(errs, fmt.Errorf("registry: duplicate alias %q", alias))
		}
		seen = append(seen, lower)
	}

	return errors.Join(errs...)
}
