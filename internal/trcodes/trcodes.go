// Package trcodes defines the canonical diagnostic codes (TRB-series) emitted by tracegen.
// Each code represents a distinct failure or notice produced by the rewriting pipeline.
//
// Code numbering scheme:
//
//	000–019  Malformed input (wrong item kind, wrong signature shape)
//	020–029  Marker usage errors
//	030–039  Matcher notices (conservative pass-through)
//	040–049  Internal invariant violations
package trcodes

import "fmt"

// Code represents a tracegen diagnostic code (TRB-series).
type Code int

const (
	codeInvalid Code = iota

	TRB000MalformedInput
	TRB010NotFallibleFunction
	TRB020DuplicateMarker
	TRB030UnsupportedPattern
	TRB040ReassemblyFailure
)

// String returns the canonical code and short name of the diagnostic.
// Example: "TRB000: MalformedInput"
func (c Code) String() string {
	switch c {
	case TRB000MalformedInput:
		return "TRB000: MalformedInput"
	case TRB010NotFallibleFunction:
		return "TRB010: NotFallibleFunction"
	case TRB020DuplicateMarker:
		return "TRB020: DuplicateMarker"
	case TRB030UnsupportedPattern:
		return "TRB030: UnsupportedPattern"
	case TRB040ReassemblyFailure:
		return "TRB040: ReassemblyFailure"
	default:
		return fmt.Sprintf("code-unknown(%d)", c)
	}
}

// Description returns the human-readable explanation of the diagnostic.
func (c Code) Description() string {
	switch c {
	case TRB000MalformedInput:
		return "Trace marker is only applicable to function declarations."
	case TRB010NotFallibleFunction:
		return "Marked function must have error as its last result."
	case TRB020DuplicateMarker:
		return "Trace marker must appear at most once per declaration."
	case TRB030UnsupportedPattern:
		return "Construct was left untouched: the matcher cannot safely classify it."
	case TRB040ReassemblyFailure:
		return "Rewritten sub-tree could not be substituted back into the function."
	default:
		return fmt.Sprintf("unknown-code(%d)", c)
	}
}

// Informational reports whether the code is a notice rather than an error.
// Informational diagnostics never fail the run.
func (c Code) Informational() bool {
	return c == TRB030UnsupportedPattern
}

// Canonical constructors — for readability and stable call sites.

func MalformedInput() Code      { return TRB000MalformedInput }
func NotFallibleFunction() Code { return TRB010NotFallibleFunction }
func DuplicateMarker() Code     { return TRB020DuplicateMarker }
func UnsupportedPattern() Code  { return TRB030UnsupportedPattern }
func ReassemblyFailure() Code   { return TRB040ReassemblyFailure }
