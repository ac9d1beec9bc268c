package content

import (
	"fmt"
	"regexp"
)

type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// Matcher tests scalar values against a pattern anchored at the start of the
// value. The pattern only has to match a prefix: "abc" matches "abcdef" but
// "bcd" does not.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

func Compile(pattern string) (*Matcher, error) {
	// validate the pattern as written first, wrapping it could balance stray parentheses
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}

	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

func (m *Matcher) Pattern() string {
	return m.pattern
}

// Count returns the number of scalars anywhere under v whose text matches.
func (m *Matcher) Count(v Value) int {
	switch t := v.(type) {
	case Scalar:
		if m.re.MatchString(t.Text) {
			return 1
		}
		return 0
	case Object:
		n := 0
		for _, member := range t {
			n += m.Count(member.Value)
		}
		return n
	case Array:
		n := 0
		for _, item := range t {
			n += m.Count(item)
		}
		return n
	case nil:
		return 0
	default:
		panic(fmt.Sprintf("content: unknown value type %T", v))
	}
}

// Count compiles pattern and counts the matching scalars of v.
func Count(v Value, pattern string) (int, error) {
	m, err := Compile(pattern)
	if err != nil {
		return 0, err
	}
	return m.Count(v), nil
}
