// Package registry holds the live mock collection and the log of requests
// that matched no mock.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mockitohq/mockito/pkg/mock"
	"github.com/mockitohq/mockito/pkg/request"
)

// UnmatchedEntry records one request that satisfied no registered mock.
type UnmatchedEntry struct {
	// ID is a unique identifier for the log entry.
	ID string

	// Request is the recorded request, verbatim as parsed.
	Request *request.Request
}

// Registry is a thread-safe, insertion-ordered collection of mocks plus an
// append-only log of unmatched requests.
//
// Each exported method is a single critical section, so a match together
// with its hit-count increment, or an unmatched-log append, is observed
// atomically by concurrent administrative reads.
//
// Duplicate mock IDs are permitted; Get and Delete resolve an ambiguous ID
// to the first mock in stored order.
type Registry struct {
	mu        sync.Mutex
	mocks     []*mock.Mock
	unmatched []*UnmatchedEntry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add appends a mock to the end of the sequence. No uniqueness check is
// performed on the ID.
func (r *Registry) Add(m *mock.Mock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks = append(r.mocks, m)
}

// Get returns a snapshot of the first mock with the given ID, or nil.
// The copy carries the hit count at the time of the call.
func (r *Registry) Get(id string) *mock.Mock {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mocks {
		if m.ID == id {
			snapshot := *m
			return &snapshot
		}
	}
	return nil
}

// Delete removes the first mock with the given ID, preserving the relative
// order of the survivors. Returns false if no mock had that ID.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.mocks {
		if m.ID == id {
			r.mocks = append(r.mocks[:i], r.mocks[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all mocks. The unmatched-request log is untouched.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks = nil
}

// Len returns the number of registered mocks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mocks)
}

// Match scans the mocks in reverse insertion order and returns a snapshot
// of the first one satisfied by the request, after incrementing its hit
// count. Later registrations win, so a test can refine an earlier mock by
// registering a more specific one on top of it.
//
// If nothing matches, the request is appended to the unmatched log and
// Match returns nil.
func (r *Registry) Match(req *request.Request) *mock.Mock {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.mocks) - 1; i >= 0; i-- {
		m := r.mocks[i]
		if m.Satisfies(req) {
			m.Hits++
			snapshot := *m
			return &snapshot
		}
	}
	r.unmatched = append(r.unmatched, &UnmatchedEntry{
		ID:      uuid.NewString(),
		Request: req,
	})
	return nil
}

// LastUnmatched returns the most recently recorded unmatched request,
// or nil if none has been recorded yet.
func (r *Registry) LastUnmatched() *UnmatchedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.unmatched) == 0 {
		return nil
	}
	return r.unmatched[len(r.unmatched)-1]
}

// UnmatchedCount returns the number of recorded unmatched requests.
func (r *Registry) UnmatchedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unmatched)
}
