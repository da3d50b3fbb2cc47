// Package mock provides the Mock expectation type and the Matcher values
// used to describe how an expectation matches live requests.
package mock

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// matcherKind discriminates the Matcher variants.
type matcherKind int

const (
	kindExact matcherKind = iota
	kindRegex
	kindMissing
)

// Matcher is a predicate over an optional observed string. It has three
// variants: Exact (literal equality), Regex (the compiled pattern must match
// the entire observed string), and Missing (the observed value must be
// absent).
//
// The zero value is Exact(""), which matches a present empty string.
type Matcher struct {
	kind    matcherKind
	value   string
	pattern *regexp.Regexp
}

// Exact returns a Matcher that matches a present value equal to s.
func Exact(s string) Matcher {
	return Matcher{kind: kindExact, value: s}
}

// Regex returns a Matcher that matches a present value against pattern.
// The pattern must match the entire observed string, not a substring.
// Returns an error if the pattern does not compile.
func Regex(pattern string) (Matcher, error) {
	re, err := compileFull(pattern)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{kind: kindRegex, value: pattern, pattern: re}, nil
}

// MustRegex is like Regex but panics on an invalid pattern.
// Intended for test code and static mock definitions.
func MustRegex(pattern string) Matcher {
	m, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Missing returns a Matcher satisfied only when the observed value is
// absent. A present value, including the empty string, is a mismatch.
func Missing() Matcher {
	return Matcher{kind: kindMissing}
}

// compileFull anchors the pattern so matching covers the whole string.
// The raw pattern is compiled first so a malformed one is reported in the
// user's own spelling, not with the anchoring wrapper absorbed into it.
func compileFull(pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(`\A(?:` + pattern + `)\z`)
}

// Matches reports whether the observed value satisfies the matcher.
// A nil observed means the value was absent.
func (m Matcher) Matches(observed *string) bool {
	switch m.kind {
	case kindRegex:
		return observed != nil && m.pattern.MatchString(*observed)
	case kindMissing:
		return observed == nil
	default:
		return observed != nil && *observed == m.value
	}
}

// IsMissing reports whether the matcher is the Missing variant.
func (m Matcher) IsMissing() bool {
	return m.kind == kindMissing
}

// String returns a short description for logs and error messages.
func (m Matcher) String() string {
	switch m.kind {
	case kindRegex:
		return fmt.Sprintf("regex(%s)", m.value)
	case kindMissing:
		return "missing"
	default:
		return fmt.Sprintf("exact(%s)", m.value)
	}
}

// Wire representation of a Matcher:
//
//	Exact   -> a bare JSON string: "value"
//	Regex   -> {"regex": "pattern"}
//	Missing -> {"missing": true}
//
// The tagging round-trips losslessly through marshal -> unmarshal -> marshal.
type matcherObject struct {
	Regex   *string `json:"regex,omitempty"`
	Missing *bool   `json:"missing,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Matcher) MarshalJSON() ([]byte, error) {
	switch m.kind {
	case kindRegex:
		return json.Marshal(matcherObject{Regex: &m.value})
	case kindMissing:
		missing := true
		return json.Marshal(matcherObject{Missing: &missing})
	default:
		return json.Marshal(m.value)
	}
}

// UnmarshalJSON implements json.Unmarshaler. An invalid regex pattern is a
// decode error, so it surfaces at registration time rather than during
// matching.
func (m *Matcher) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = Exact(s)
		return nil
	}

	var obj matcherObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("matcher: expected a string, a regex object or a missing marker: %w", err)
	}

	switch {
	case obj.Regex != nil:
		parsed, err := Regex(*obj.Regex)
		if err != nil {
			return fmt.Errorf("matcher: invalid regex %q: %w", *obj.Regex, err)
		}
		*m = parsed
		return nil
	case obj.Missing != nil && *obj.Missing:
		*m = Missing()
		return nil
	default:
		return fmt.Errorf("matcher: unrecognized matcher object %s", data)
	}
}
