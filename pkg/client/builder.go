package client

import (
	"github.com/mockitohq/mockito/pkg/mock"
)

// Builder assembles a mock definition fluently. Matcher errors (an invalid
// regex) are collected and reported by Build, so call sites can chain
// without per-step error handling.
//
// Defaults: the body matcher is Exact(""), which matches bodyless requests;
// the reply status is "200 OK". Use MatchBodyRegex with a pattern such as
// `(?s).*` to accept any body.
type Builder struct {
	m   mock.Mock
	err error
}

// NewMock starts a builder for the given method and exact path.
func NewMock(method, path string) *Builder {
	return &Builder{
		m: mock.Mock{
			Method: method,
			Path:   mock.Exact(path),
			Body:   mock.Exact(""),
			Response: mock.Response{
				Status: "200 OK",
			},
		},
	}
}

// ID sets a caller-chosen ID instead of the generated UUID.
func (b *Builder) ID(id string) *Builder {
	b.m.ID = id
	return b
}

// MatchPathRegex replaces the exact path with a full-match regex.
func (b *Builder) MatchPathRegex(pattern string) *Builder {
	m, err := mock.Regex(pattern)
	if err != nil {
		b.fail(err)
		return b
	}
	b.m.Path = m
	return b
}

// MatchHeader requires the header to be present with exactly this value.
// Declaring the same name twice is allowed; every declaration must hold.
func (b *Builder) MatchHeader(name, value string) *Builder {
	b.m.Headers = append(b.m.Headers, mock.HeaderMatcher{Name: name, Value: mock.Exact(value)})
	return b
}

// MatchHeaderRegex requires the header's value to fully match the pattern.
func (b *Builder) MatchHeaderRegex(name, pattern string) *Builder {
	m, err := mock.Regex(pattern)
	if err != nil {
		b.fail(err)
		return b
	}
	b.m.Headers = append(b.m.Headers, mock.HeaderMatcher{Name: name, Value: m})
	return b
}

// MatchHeaderMissing requires the header to be entirely absent. A request
// carrying the header with any value, even empty, does not match.
func (b *Builder) MatchHeaderMissing(name string) *Builder {
	b.m.Headers = append(b.m.Headers, mock.HeaderMatcher{Name: name, Value: mock.Missing()})
	return b
}

// MatchBody requires the request body, decoded as UTF-8, to equal body.
func (b *Builder) MatchBody(body string) *Builder {
	b.m.Body = mock.Exact(body)
	return b
}

// MatchBodyRegex requires the decoded request body to fully match pattern.
func (b *Builder) MatchBodyRegex(pattern string) *Builder {
	m, err := mock.Regex(pattern)
	if err != nil {
		b.fail(err)
		return b
	}
	b.m.Body = m
	return b
}

// Reply sets the response status line text, e.g. "201 Created".
func (b *Builder) Reply(status string) *Builder {
	b.m.Response.Status = status
	return b
}

// ReplyHeader appends a response header, replayed verbatim in declared order.
func (b *Builder) ReplyHeader(name, value string) *Builder {
	b.m.Response.Headers = append(b.m.Response.Headers, [2]string{name, value})
	return b
}

// ReplyBody sets the response body.
func (b *Builder) ReplyBody(body string) *Builder {
	b.m.Response.Body = body
	return b
}

// ExpectHits records how many hits the caller expects. The server stores
// this as advisory metadata and never enforces it.
func (b *Builder) ExpectHits(n int) *Builder {
	b.m.ExpectedHits = n
	return b
}

// Build returns the assembled mock, or the first matcher error encountered.
func (b *Builder) Build() (*mock.Mock, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := b.m
	return &m, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
