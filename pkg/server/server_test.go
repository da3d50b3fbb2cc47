package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockitohq/mockito/pkg/client"
	"github.com/mockitohq/mockito/pkg/server"
)

// --- Helpers ---

// freeAddr reserves an ephemeral port and releases it for the server to take.
func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func startServer(t *testing.T) (*server.Server, *client.Client) {
	t.Helper()
	srv := server.New(freeAddr(t))
	require.NoError(t, srv.TryStart())
	t.Cleanup(func() { _ = srv.Close() })
	return srv, client.New("http://" + srv.Addr())
}

// rawRoundTrip writes raw bytes to the server and returns everything it
// answers before closing the connection.
func rawRoundTrip(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

// --- Lifecycle ---

func TestTryStart_Idempotent(t *testing.T) {
	addr := freeAddr(t)

	first := server.New(addr)
	require.NoError(t, first.TryStart())
	t.Cleanup(func() { _ = first.Close() })

	// Starting against an occupied address is a no-op, not an error.
	second := server.New(addr)
	require.NoError(t, second.TryStart())
	require.NoError(t, first.TryStart())
}

func TestTryStart_ReadyWhenItReturns(t *testing.T) {
	srv, c := startServer(t)

	// No sleep between start and use: TryStart established readiness.
	m, err := client.NewMock("GET", "/ready").ReplyBody("yes").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(context.Background(), m))

	resp := rawRoundTrip(t, srv.Addr(), "GET /ready HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasSuffix(resp, "yes"))
}

// --- Wire protocol end to end ---

func TestServer_MatchedResponseBytes(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	m, err := client.NewMock("GET", "/greet").
		Reply("202 Accepted").
		ReplyHeader("X-Greeting", "hi").
		ReplyBody("hello world").
		Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, m))

	resp := rawRoundTrip(t, srv.Addr(), "GET /greet HTTP/1.1\r\nHost: t\r\n\r\n")
	expected := "HTTP/1.1 202 Accepted\r\n" +
		"content-length: 11\r\n" +
		"X-Greeting: hi\r\n" +
		"\r\n" +
		"hello world"
	assert.Equal(t, expected, resp)
}

func TestServer_HitsCountOverTheWire(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	m, err := client.NewMock("GET", "/counted").ReplyBody("ok").ExpectHits(2).Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, m))

	rawRoundTrip(t, srv.Addr(), "GET /counted HTTP/1.1\r\nHost: t\r\n\r\n")
	rawRoundTrip(t, srv.Addr(), "GET /counted HTTP/1.1\r\nHost: t\r\n\r\n")

	fetched, err := c.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.Hits)
	assert.Equal(t, 2, fetched.ExpectedHits, "expected_hits is stored but never enforced")
}

func TestServer_LastRegisteredWins(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	a, err := client.NewMock("GET", "/x").ReplyBody("A").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, a))

	b, err := client.NewMock("GET", "/x").ReplyBody("B").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, b))

	resp := rawRoundTrip(t, srv.Addr(), "GET /x HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasSuffix(resp, "B"), "most recently registered mock must win, got %q", resp)
}

func TestServer_UnmatchedRequestFlow(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	resp := rawRoundTrip(t, srv.Addr(), "POST /missing HTTP/1.1\r\nHost: t\r\nContent-Length: 7\r\n\r\npayload")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 501 Not Implemented\r\n"))
	assert.True(t, strings.HasSuffix(resp, "\r\n\r\n"), "501 carries an empty body")

	last, err := c.LastUnmatchedRequest(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(last, "POST /missing\r\n"))
	assert.Contains(t, last, "payload")
}

func TestServer_LastUnmatchedEmptyBeforeAnyMiss(t *testing.T) {
	_, c := startServer(t)

	last, err := c.LastUnmatchedRequest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestServer_MissingHeaderSemantics(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	m, err := client.NewMock("GET", "/anon").
		MatchHeaderMissing("Authorization").
		ReplyBody("anonymous").
		Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, m))

	resp := rawRoundTrip(t, srv.Addr(), "GET /anon HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasSuffix(resp, "anonymous"))

	resp = rawRoundTrip(t, srv.Addr(), "GET /anon HTTP/1.1\r\nHost: t\r\nAuthorization: Bearer x\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 501"))

	// An empty value is still a present header.
	resp = rawRoundTrip(t, srv.Addr(), "GET /anon HTTP/1.1\r\nHost: t\r\nAuthorization:\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 501"))
}

func TestServer_DeleteOneMock(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	keep, err := client.NewMock("GET", "/keep").ReplyBody("kept").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, keep))

	drop, err := client.NewMock("GET", "/drop").ReplyBody("dropped").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, drop))

	require.NoError(t, c.Delete(ctx, drop.ID))

	_, err = c.Get(ctx, drop.ID)
	assert.True(t, errors.Is(err, client.ErrNotFound))

	resp := rawRoundTrip(t, srv.Addr(), "GET /drop HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 501"))

	resp = rawRoundTrip(t, srv.Addr(), "GET /keep HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasSuffix(resp, "kept"), "other mocks must remain matchable")
}

func TestServer_DeleteAllMocks(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	m, err := client.NewMock("GET", "/x").ReplyBody("X").Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, m))
	require.NoError(t, c.DeleteAll(ctx))

	resp := rawRoundTrip(t, srv.Addr(), "GET /x HTTP/1.1\r\nHost: t\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 501"), "previously matching request now falls through")
}

func TestServer_RoundTripByteIdentical(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	m, err := client.NewMock("POST", "/orders").
		MatchHeaderRegex("X-Auth", "Bearer .+").
		MatchBodyRegex(`(?s).*`).
		Reply("201 Created").
		ReplyHeader("Location", "/orders/1").
		ReplyBody("made").
		Build()
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, m))

	stimulus := "POST /orders HTTP/1.1\r\nHost: t\r\nX-Auth: Bearer tok\r\nContent-Length: 2\r\n\r\n{}"
	first := rawRoundTrip(t, srv.Addr(), stimulus)

	fetched, err := c.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NoError(t, c.Create(ctx, fetched))

	second := rawRoundTrip(t, srv.Addr(), stimulus)
	assert.Equal(t, first, second)
}

func TestServer_MalformedRequestAnswers422(t *testing.T) {
	srv, _ := startServer(t)

	resp := rawRoundTrip(t, srv.Addr(), "THIS IS NOT HTTP\r\n\r\n")
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 422 Unprocessable Entity\r\n"))

	_, body, found := strings.Cut(resp, "\r\n\r\n")
	require.True(t, found)
	assert.NotEmpty(t, body, "422 carries the parser's diagnostic")
}

func TestServer_MalformedRegisterLeavesRegistryUsable(t *testing.T) {
	srv, c := startServer(t)
	ctx := context.Background()

	payload := `{"id":"bad","path":{"regex":"[unclosed"}}`
	resp := rawRoundTrip(t, srv.Addr(),
		"POST /mockito/mocks HTTP/1.1\r\nHost: t\r\nContent-Length: "+
			strconv.Itoa(len(payload))+"\r\n\r\n"+payload)
	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 422"))

	// The failed registration inserted nothing.
	_, err := c.Get(ctx, "bad")
	assert.True(t, errors.Is(err, client.ErrNotFound))
	assert.Equal(t, 0, srv.Registry().Len())
}
