// Package entity classifies entity identifiers of two merged knowledge graphs.
//
// Blank nodes carry their graph of origin in a prefix. Two prefix forms are in
// circulation; both are folded into a single Kind at classification time so no
// other package has to know about them.
package entity

import (
	"fmt"
	"strings"
)

// Kind is the structural class of an entity identifier.
type Kind uint8

const (
	// Plain is any entity that is not a blank node.
	Plain Kind = iota
	// BlankA is a blank node originating from graph A.
	BlankA
	// BlankB is a blank node originating from graph B.
	BlankB
)

const (
	// BlankMarker separates the graph tag in the current prefix form.
	BlankMarker = "■"

	prefixA       = "<" + BlankMarker + "0" + BlankMarker
	prefixB       = "<" + BlankMarker + "1" + BlankMarker
	legacyPrefixA = "<BlankNode#A"
	legacyPrefixB = "<BlankNode#B"
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case BlankA:
		return "blank-a"
	case BlankB:
		return "blank-b"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsBlank reports whether k is one of the blank kinds.
func (k Kind) IsBlank() bool {
	return k == BlankA || k == BlankB
}

// Other returns the blank kind of the opposite graph. Plain maps to Plain.
func (k Kind) Other() Kind {
	switch k {
	case BlankA:
		return BlankB
	case BlankB:
		return BlankA
	default:
		return Plain
	}
}

// Classify returns the Kind of id.
func Classify(id string) Kind {
	switch {
	case strings.HasPrefix(id, prefixA), strings.HasPrefix(id, legacyPrefixA):
		return BlankA
	case strings.HasPrefix(id, prefixB), strings.HasPrefix(id, legacyPrefixB):
		return BlankB
	default:
		return Plain
	}
}

// Shorten strips angle brackets and the graph prefix from a blank node id so
// that the two graph-local names of the same node compare equal.
// Plain ids only lose their brackets.
func Shorten(id string) string {
	s := strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
	for _, p := range []string{prefixA, prefixB, legacyPrefixA, legacyPrefixB} {
		bare := strings.TrimPrefix(p, "<")
		if strings.HasPrefix(s, bare) {
			return strings.TrimPrefix(s, bare)
		}
	}
	return s
}
