package hglib

import (
	"iter"
	"strings"
)

// Well-known capability tokens the command server advertises in its
// hello message. "runcommand" is required; its absence means the
// remote end isn't actually speaking the command-server protocol.
const (
	CapRunCommand  = "runcommand"
	CapGetEncoding = "getencoding"
)

// CapabilitySet holds the space-separated capability tokens a command
// server advertised in its hello message. It is populated once at
// handshake and never mutated afterward.
type CapabilitySet struct {
	caps map[string]struct{}
}

// NewCapabilitySet builds a CapabilitySet from a list of tokens.
func NewCapabilitySet(capabilities ...string) CapabilitySet {
	cs := CapabilitySet{caps: make(map[string]struct{}, len(capabilities))}
	for _, c := range capabilities {
		if c = strings.TrimSpace(c); c != "" {
			cs.caps[c] = struct{}{}
		}
	}
	return cs
}

// Len returns the number of capabilities in the set.
func (cs CapabilitySet) Len() int {
	return len(cs.caps)
}

// Has reports whether the capability token is present in the set.
func (cs CapabilitySet) Has(s string) bool {
	_, ok := cs.caps[s]
	return ok
}

// All returns an iterator over every capability in the set. Use
// slices.Collect(cs.All()) for a slice.
func (cs CapabilitySet) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for c := range cs.caps {
			if !yield(c) {
				return
			}
		}
	}
}
