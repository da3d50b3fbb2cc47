package server

import (
	"encoding/json"
	"log/slog"
	"regexp"

	"github.com/mockitohq/mockito/pkg/mock"
	"github.com/mockitohq/mockito/pkg/registry"
	"github.com/mockitohq/mockito/pkg/request"
)

// Administrative route patterns, matched against the request line
// "METHOD path" in the order tried by Dispatch. The first pattern that
// matches wins; anything else falls through to mock matching.
//
// Mock IDs may contain word characters and dashes, so UUID-style IDs are
// addressable.
var (
	routeRegisterMock  = regexp.MustCompile(`^POST /mockito/mocks$`)
	routeGetMock       = regexp.MustCompile(`^GET /mockito/mocks/(?P<mock_id>[0-9A-Za-z_-]+)$`)
	routeDeleteMock    = regexp.MustCompile(`^DELETE /mockito/mocks/(?P<mock_id>[0-9A-Za-z_-]+)$`)
	routeDeleteMocks   = regexp.MustCompile(`^DELETE /mockito/mocks$`)
	routeLastUnmatched = regexp.MustCompile(`^GET /mockito/last_unmatched_request$`)
)

// captureID extracts the mock_id capture group from the request line,
// if the pattern matches it at all.
func captureID(re *regexp.Regexp, line string) (string, bool) {
	groups := re.FindStringSubmatch(line)
	if groups == nil {
		return "", false
	}
	return groups[re.SubexpIndex("mock_id")], true
}

// Dispatcher routes a parsed request either to the administrative protocol
// or to mock matching, and renders the outcome as raw response bytes.
type Dispatcher struct {
	registry *registry.Registry
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(reg *registry.Registry, log *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: reg, log: log}
}

// Dispatch handles one parsed request and returns the full response bytes.
func (d *Dispatcher) Dispatch(req *request.Request) []byte {
	line := req.Method + " " + req.Path

	if routeRegisterMock.MatchString(line) {
		return d.handleRegisterMock(req)
	}
	if id, ok := captureID(routeGetMock, line); ok {
		return d.handleGetMock(id)
	}
	if id, ok := captureID(routeDeleteMock, line); ok {
		return d.handleDeleteMock(id)
	}
	if routeDeleteMocks.MatchString(line) {
		return d.handleDeleteMocks()
	}
	if routeLastUnmatched.MatchString(line) {
		return d.handleLastUnmatchedRequest()
	}

	return d.handleMatchMock(req)
}

// handleRegisterMock decodes and appends a mock. A decode failure, including
// an uncompilable regex matcher, leaves the registry untouched and answers
// 422 with the decoder's message.
func (d *Dispatcher) handleRegisterMock(req *request.Request) []byte {
	m, err := mock.Decode(req.Body)
	if err != nil {
		d.log.Debug("rejected mock registration", "error", err)
		return formatResponse(statusUnprocessable, nil, []byte(err.Error()))
	}
	d.registry.Add(m)
	d.log.Info("mock registered", "id", m.ID, "method", m.Method, "path", m.Path.String())
	return formatResponse(statusOK, nil, nil)
}

// handleGetMock serializes the first mock with the given ID, including its
// current hit count.
func (d *Dispatcher) handleGetMock(id string) []byte {
	m := d.registry.Get(id)
	if m == nil {
		return formatResponse(statusNotFound, nil, nil)
	}
	body, err := json.Marshal(m)
	if err != nil {
		d.log.Error("failed to serialize mock", "id", id, "error", err)
		return formatResponse(statusUnprocessable, nil, []byte(err.Error()))
	}
	return formatResponse(statusOK, nil, body)
}

func (d *Dispatcher) handleDeleteMock(id string) []byte {
	if !d.registry.Delete(id) {
		return formatResponse(statusNotFound, nil, nil)
	}
	d.log.Info("mock deleted", "id", id)
	return formatResponse(statusOK, nil, nil)
}

func (d *Dispatcher) handleDeleteMocks() []byte {
	d.registry.Clear()
	d.log.Info("all mocks deleted")
	return formatResponse(statusOK, nil, nil)
}

// handleLastUnmatchedRequest renders the most recent unmatched request, or
// an empty body when none has been recorded.
func (d *Dispatcher) handleLastUnmatchedRequest() []byte {
	entry := d.registry.LastUnmatched()
	if entry == nil {
		return formatResponse(statusOK, nil, nil)
	}
	return formatResponse(statusOK, nil, []byte(entry.Request.String()))
}

// handleMatchMock is the fallback route: most recently registered mock wins.
// An unmatched request answers 501, deliberately distinct from the
// administrative 404, and is recorded for later inspection.
func (d *Dispatcher) handleMatchMock(req *request.Request) []byte {
	m := d.registry.Match(req)
	if m == nil {
		d.log.Debug("no mock matched", "method", req.Method, "path", req.Path)
		return formatResponse(statusNotImplemented, nil, nil)
	}
	d.log.Debug("mock matched", "id", m.ID, "method", req.Method, "path", req.Path, "hits", m.Hits)
	return formatResponse(m.Response.Status, m.Response.Headers, []byte(m.Response.Body))
}
