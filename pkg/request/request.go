// Package request provides the parsed representation of an incoming HTTP
// request as consumed by the matching engine. Parsing raw bytes is delegated
// to the standard library; this package only reshapes the result.
package request

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// MaxBodySize caps how much of a request body is read for matching (10MB).
const MaxBodySize = 10 << 20

// Header is a single request header as an ordered name/value pair.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed incoming request. It is read-only to the engine.
type Request struct {
	Method     string
	Path       string // raw request-URI, including any query component
	Headers    []Header
	Body       []byte
	RemoteAddr string
	ReceivedAt time.Time
}

// Read parses a single HTTP/1.1 request from r. The returned error's text is
// suitable as a client-facing diagnostic for unparseable requests.
func Read(r *bufio.Reader) (*Request, error) {
	httpReq, err := http.ReadRequest(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse the request: %v", err)
	}
	defer func() { _ = httpReq.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpReq.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("could not read the request body: %v", err)
	}

	req := &Request{
		Method:     httpReq.Method,
		Path:       httpReq.RequestURI,
		Headers:    flattenHeaders(httpReq.Header),
		Body:       body,
		ReceivedAt: time.Now(),
	}
	return req, nil
}

// flattenHeaders converts the parser's header map into ordered pairs.
// The map has no intrinsic order, so names are sorted for a deterministic
// rendering; values for a repeated name keep their received order.
func flattenHeaders(h http.Header) []Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var pairs []Header
	for _, name := range names {
		for _, value := range h[name] {
			pairs = append(pairs, Header{Name: name, Value: value})
		}
	}
	return pairs
}

// FindHeader looks up the first header with the given name,
// case-insensitively per HTTP semantics.
func (r *Request) FindHeader(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// BodyText returns the request body decoded as UTF-8, with invalid byte
// sequences replaced by U+FFFD.
func (r *Request) BodyText() string {
	return strings.ToValidUTF8(string(r.Body), "�")
}

// String renders the request in a human-readable form: request line, headers
// in stored order, a blank line, then the body. Used by the diagnostic
// last-unmatched-request endpoint.
func (r *Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\r\n", r.Method, r.Path)
	for _, h := range r.Headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")
	b.WriteString(r.BodyText())
	return b.String()
}
