package mock

import (
	"encoding/json"
	"fmt"

	"github.com/mockitohq/mockito/pkg/request"
)

// HeaderMatcher pairs a header field name with the Matcher its observed
// value must satisfy. On the wire it is a 2-element array: [name, matcher].
type HeaderMatcher struct {
	Name  string
	Value Matcher
}

// MarshalJSON implements json.Marshaler.
func (h HeaderMatcher) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{h.Name, h.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HeaderMatcher) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("header matcher: expected a [name, matcher] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("header matcher: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &h.Name); err != nil {
		return fmt.Errorf("header matcher name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &h.Value); err != nil {
		return fmt.Errorf("header matcher %q: %w", h.Name, err)
	}
	return nil
}

// Response is the canned response replayed for a matched request.
// Status is the full status line text after the protocol version, e.g.
// "200 OK". Headers are emitted verbatim, in declared order.
type Response struct {
	Status  string      `json:"status"`
	Headers [][2]string `json:"headers"`
	Body    string      `json:"body"`
}

// Mock is a registered expectation: matching criteria for an incoming
// request plus the canned response to replay when they are satisfied.
//
// Hits counts satisfied matches. ExpectedHits is advisory metadata stored
// for the caller; the engine never compares it against Hits.
type Mock struct {
	ID           string          `json:"id"`
	Method       string          `json:"method"`
	Path         Matcher         `json:"path"`
	Headers      []HeaderMatcher `json:"headers"`
	Body         Matcher         `json:"body"`
	Response     Response        `json:"response"`
	Hits         int             `json:"hits"`
	ExpectedHits int             `json:"expected_hits"`
}

// Satisfies reports whether the request meets all of the mock's criteria:
// method, path, every declared header, and body.
func (m *Mock) Satisfies(req *request.Request) bool {
	return m.methodMatches(req) &&
		m.pathMatches(req) &&
		m.headersMatch(req) &&
		m.bodyMatches(req)
}

// methodMatches compares methods with exact, case-sensitive equality.
func (m *Mock) methodMatches(req *request.Request) bool {
	return m.Method == req.Method
}

// pathMatches applies the path matcher to the full request path, including
// any query component as delivered by the parser.
func (m *Mock) pathMatches(req *request.Request) bool {
	path := req.Path
	return m.Path.Matches(&path)
}

// headersMatch checks every declared header pair. A header absent from the
// request satisfies only a Missing matcher. Request headers not declared on
// the mock are ignored.
func (m *Mock) headersMatch(req *request.Request) bool {
	for _, hm := range m.Headers {
		value, found := req.FindHeader(hm.Name)
		if found {
			if !hm.Value.Matches(&value) {
				return false
			}
			continue
		}
		if !hm.Value.IsMissing() {
			return false
		}
	}
	return true
}

// bodyMatches applies the body matcher to the request body decoded as UTF-8
// with lossy replacement of invalid sequences.
func (m *Mock) bodyMatches(req *request.Request) bool {
	body := req.BodyText()
	return m.Body.Matches(&body)
}

// requiredFields are the fields every wire-format Mock record must carry.
var requiredFields = []string{"id", "method", "path", "headers", "body", "response", "hits", "expected_hits"}

// Decode parses a Mock from its JSON wire representation. Any error,
// including an uncompilable regex matcher, is returned with the decoder's
// diagnostic text. Every schema field must be present, so a sparse record
// such as "{}" is rejected instead of registering as a zero-valued mock
// that matches bodyless requests for the empty method and path.
func Decode(data []byte) (*Mock, error) {
	var m Mock
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, err
	}
	for _, field := range requiredFields {
		if _, ok := present[field]; !ok {
			return nil, fmt.Errorf("missing field `%s`", field)
		}
	}
	return &m, nil
}
