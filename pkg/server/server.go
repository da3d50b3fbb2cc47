// Package server runs the background mock server: a TCP accept loop feeding
// the dispatcher, with idempotent startup against a well-known address.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mockitohq/mockito/pkg/logging"
	"github.com/mockitohq/mockito/pkg/registry"
	"github.com/mockitohq/mockito/pkg/request"
)

// DefaultAddr is the well-known loopback address test suites connect to.
const DefaultAddr = "127.0.0.1:1234"

// readyTimeout bounds how long TryStart waits for the listener to come up.
const readyTimeout = 5 * time.Second

// Server owns the listener and the registry it exposes over the wire.
type Server struct {
	addr       string
	log        *slog.Logger
	registry   *registry.Registry
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRegistry uses an existing registry instead of an empty one,
// e.g. one preloaded from configuration.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// New creates a Server bound to addr. An empty addr means DefaultAddr.
func New(addr string, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:     addr,
		log:      logging.Nop(),
		registry: registry.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = NewDispatcher(s.registry, s.log)
	return s
}

// Addr returns the address the server is configured for.
func (s *Server) Addr() string {
	return s.addr
}

// Registry returns the server's registry, for preloading mocks and for
// in-process inspection by tests.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// TryStart starts the server unless something is already listening on its
// address, in which case it is a no-op. It does not return until the
// listener is actually accepting connections, so a registration call issued
// after TryStart returns cannot race the startup.
func (s *Server) TryStart() error {
	if isListening(s.addr) {
		return nil
	}
	if err := s.Start(); err != nil {
		return err
	}

	deadline := time.Now().Add(readyTimeout)
	for !isListening(s.addr) {
		if time.Now().After(deadline) {
			return fmt.Errorf("server on %s not accepting connections after %s", s.addr, readyTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Start binds the listener and spawns the accept loop. Unlike TryStart it
// fails if the address is taken and does not wait for readiness.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.listener = listener
	s.log.Info("mock server listening", "addr", s.addr)

	go s.acceptLoop(listener)
	return nil
}

// Close stops the listener. In-memory state is kept, so a Close/Start pair
// preserves registered mocks.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// acceptLoop handles connections one at a time, to completion. Together
// with the registry's internal lock this serializes every registry
// transaction against the next connection.
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		s.handleConn(conn)
	}
}

// handleConn parses, dispatches and answers a single connection. A parse
// failure answers 422 with the parser's diagnostic and never reaches the
// dispatcher. A write failure is fatal to this connection only.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	req, err := request.Read(bufio.NewReader(conn))

	var resp []byte
	if err != nil {
		resp = formatResponse(statusUnprocessable, nil, []byte(err.Error()))
	} else {
		req.RemoteAddr = conn.RemoteAddr().String()
		resp = s.dispatcher.Dispatch(req)
	}

	if _, err := conn.Write(resp); err != nil {
		s.log.Warn("failed to write response", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// isListening reports whether something accepts connections on addr.
func isListening(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
