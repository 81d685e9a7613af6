// Package filter decides whether a document row is kept or skipped.
package filter

import "strings"

const (
	openMarker  = "[%"
	closeMarker = "%]"
)

// Reason is the outcome of classifying a row
type Reason int

const (
	// ReasonKeep means the row becomes a sample
	ReasonKeep Reason = iota
	// ReasonEmpty means the identifier or the text is missing
	ReasonEmpty
	// ReasonSystem means the identifier belongs to a system node
	ReasonSystem
	// ReasonCode means the text holds legacy [% %] template markup
	ReasonCode
)

// String returns the label used in logs and metrics
func (r Reason) String() string {
	switch r {
	case ReasonKeep:
		return "kept"
	case ReasonEmpty:
		return "empty"
	case ReasonSystem:
		return "system"
	case ReasonCode:
		return "code"
	default:
		return "unknown"
	}
}

// Membership is satisfied by exclusion.Set
type Membership interface {
	Contains(id int64) bool
}

// ContainsCodeBlock reports whether text contains both template markers.
// Order and pairing are not checked.
func ContainsCodeBlock(text string) bool {
	if text == "" {
		return false
	}
	return strings.Contains(text, openMarker) && strings.Contains(text, closeMarker)
}

// Classify decides the fate of one row. Missing values win over system
// membership, which wins over the markup check. excluded may be nil.
func Classify(id int64, idValid bool, text string, textValid bool, excluded Membership) Reason {
	if !idValid || !textValid || text == "" {
		return ReasonEmpty
	}
	if excluded != nil && excluded.Contains(id) {
		return ReasonSystem
	}
	if ContainsCodeBlock(text) {
		return ReasonCode
	}
	return ReasonKeep
}
