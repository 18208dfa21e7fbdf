// Package pkgid implements the validated identity types shared across bpt:
// package/library names, semantic versions, version-range sets, and the
// (name, version, revision) package identifier.
package pkgid

import (
	"strings"

	"github.com/pkg/errors"
)

// InvalidReason categorizes why a candidate name failed validation. Every
// invalid input must trigger exactly one of these.
type InvalidReason int

const (
	// ReasonEmpty means the string is empty.
	ReasonEmpty InvalidReason = iota
	// ReasonCapital means the string contains an uppercase letter.
	ReasonCapital
	// ReasonInitialNotAlpha means the first rune is not a lowercase letter.
	ReasonInitialNotAlpha
	// ReasonDoublePunct means two punctuation runs (., _, -) are adjacent.
	ReasonDoublePunct
	// ReasonEndPunct means the string ends in punctuation.
	ReasonEndPunct
	// ReasonWhitespace means the string contains whitespace.
	ReasonWhitespace
	// ReasonInvalidChar means the string contains a rune outside [a-z0-9._-].
	ReasonInvalidChar
)

func (r InvalidReason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty"
	case ReasonCapital:
		return "capital"
	case ReasonInitialNotAlpha:
		return "initial-not-alpha"
	case ReasonDoublePunct:
		return "double-punct"
	case ReasonEndPunct:
		return "end-punct"
	case ReasonWhitespace:
		return "whitespace"
	case ReasonInvalidChar:
		return "invalid-char"
	default:
		return "unknown"
	}
}

// NameError reports why Parse rejected a candidate name.
type NameError struct {
	Input  string
	Reason InvalidReason
}

func (e *NameError) Error() string {
	return errors.Errorf("invalid name %q: %s", e.Input, e.Reason).Error()
}

// Name is a validated package or library name: lowercase [a-z0-9._-],
// beginning with a lowercase letter, with no adjacent punctuation, no
// trailing punctuation, and no whitespace. The zero Name is never valid;
// the only way to construct a Name is through Parse or MustParse.
type Name struct {
	s string
}

func isPunct(b byte) bool {
	return b == '.' || b == '_' || b == '-'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLowerAlpha(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isUpperAlpha(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Parse validates s as a Name, returning a categorized *NameError if it is
// not a valid one. Validation is total: every string either parses or
// returns exactly one reason.
func Parse(s string) (Name, error) {
	if s == "" {
		return Name{}, &NameError{Input: s, Reason: ReasonEmpty}
	}
	for i := 0; i < len(s); i++ {
		if isWhitespace(s[i]) {
			return Name{}, &NameError{Input: s, Reason: ReasonWhitespace}
		}
	}
	for i := 0; i < len(s); i++ {
		if isUpperAlpha(s[i]) {
			return Name{}, &NameError{Input: s, Reason: ReasonCapital}
		}
	}
	if !isLowerAlpha(s[0]) {
		return Name{}, &NameError{Input: s, Reason: ReasonInitialNotAlpha}
	}
	if isPunct(s[len(s)-1]) {
		return Name{}, &NameError{Input: s, Reason: ReasonEndPunct}
	}
	prevPunct := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case isPunct(b):
			if prevPunct {
				return Name{}, &NameError{Input: s, Reason: ReasonDoublePunct}
			}
			prevPunct = true
		case isLowerAlpha(b) || isDigit(b):
			prevPunct = false
		default:
			return Name{}, &NameError{Input: s, Reason: ReasonInvalidChar}
		}
	}
	return Name{s: s}, nil
}

// MustParse is like Parse but panics on an invalid name. Intended for
// literals known to be valid at compile time (tests, constants).
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the underlying validated string.
func (n Name) String() string { return n.s }

// IsZero reports whether n is the zero Name (never produced by Parse).
func (n Name) IsZero() bool { return n.s == "" }

// Less provides a total order over Name, used for deterministic sorting.
func (n Name) Less(o Name) bool { return n.s < o.s }

// Equal reports whether two names are the same.
func (n Name) Equal(o Name) bool { return n.s == o.s }

// HasPrefix reports whether n's string form starts with prefix. It is a
// plain string-prefix test, so "foo" also prefix-matches "foobar".
func (n Name) HasPrefix(prefix string) bool {
	return strings.HasPrefix(n.s, prefix)
}
