// Package device describes the optional hardware modules of a robot and
// acquires them at startup.
//
// Every module is optional. The Registry tries each one in a fixed order and
// records which ones are present in a CapabilitySet; an absent module never
// blocks the others. The CapabilitySet is what a remote client sees, so it
// always matches the handles the server actually holds.
package device

import (
	"fmt"
	"strings"
)

// Kind identifies a hardware module category. The string value is the wire
// token exchanged with clients.
type Kind string

// Hardware module kinds.
const (
	Lights   Kind = "Lights"
	Motors   Kind = "Motors"
	Head     Kind = "Head"
	Speaker  Kind = "Speaker"
	Button   Kind = "Button"
	Color    Kind = "Color"
	Distance Kind = "Distance"
)

// AllKinds returns every kind in acquisition order.
func AllKinds() []Kind {
	return []Kind{
		Lights,
		Motors,
		Head,
		Speaker,
		Button,
		Color,
		Distance,
	}
}

// ParseKind maps a wire token back to a Kind.
func ParseKind(token string) (Kind, error) {
	for _, k := range AllKinds() {
		if string(k) == token {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown device kind %q", token)
}

// CapabilitySet is the ordered set of kinds present on a robot.
// The zero value is an empty set. A CapabilitySet is never mutated after it
// is built.
type CapabilitySet struct {
	kinds []Kind
}

// NewCapabilitySet builds a set from kinds, dropping duplicates and keeping
// acquisition order.
func NewCapabilitySet(kinds ...Kind) CapabilitySet {
	seen := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		seen[k] = true
	}
	ordered := make([]Kind, 0, len(seen))
	for _, k := range AllKinds() {
		if seen[k] {
			ordered = append(ordered, k)
			delete(seen, k)
		}
	}
	// Unknown kinds keep their input order after the known ones
	for _, k := range kinds {
		if seen[k] {
			ordered = append(ordered, k)
			delete(seen, k)
		}
	}
	return CapabilitySet{kinds: ordered}
}

// ParseCapabilities decodes wire tokens. Unknown tokens are an error so a
// client never advertises a capability it cannot interpret.
func ParseCapabilities(tokens []string) (CapabilitySet, error) {
	kinds := make([]Kind, 0, len(tokens))
	for _, t := range tokens {
		k, err := ParseKind(t)
		if err != nil {
			return CapabilitySet{}, err
		}
		kinds = append(kinds, k)
	}
	return NewCapabilitySet(kinds...), nil
}

// Has reports whether kind is present.
func (s CapabilitySet) Has(kind Kind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Contains reports whether every one of kinds is present. An empty argument
// list is always contained.
func (s CapabilitySet) Contains(kinds ...Kind) bool {
	for _, k := range kinds {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Missing returns the kinds from want that are not present.
func (s CapabilitySet) Missing(want ...Kind) []Kind {
	var out []Kind
	for _, k := range want {
		if !s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Kinds returns a copy of the kinds in order.
func (s CapabilitySet) Kinds() []Kind {
	out := make([]Kind, len(s.kinds))
	copy(out, s.kinds)
	return out
}

// Strings returns the wire tokens in order.
func (s CapabilitySet) Strings() []string {
	out := make([]string, len(s.kinds))
	for i, k := range s.kinds {
		out[i] = string(k)
	}
	return out
}

// Len returns the number of present kinds.
func (s CapabilitySet) Len() int {
	return len(s.kinds)
}

// String implements fmt.Stringer.
func (s CapabilitySet) String() string {
	return strings.Join(s.Strings(), ", ")
}
