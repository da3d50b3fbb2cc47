// Package client is the administrative client for the mock server: it
// registers, inspects and deletes mocks over the wire protocol.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mockitohq/mockito/pkg/mock"
)

// ErrNotFound is returned when no mock has the requested ID.
var ErrNotFound = errors.New("mock not found")

// Client talks to a running mock server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout for administrative calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:1234".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers a mock. If the mock has no ID, a UUID is assigned to it
// before sending so the caller can address it afterwards.
func (c *Client) Create(ctx context.Context, m *mock.Mock) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mock: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/mockito/mocks", payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		diagnostic, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register mock: status %d: %s", resp.StatusCode, diagnostic)
	}
	return nil
}

// Get fetches a mock by ID, including its current hit count.
func (c *Client) Get(ctx context.Context, id string) (*mock.Mock, error) {
	resp, err := c.do(ctx, http.MethodGet, "/mockito/mocks/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read mock: %w", err)
		}
		return mock.Decode(body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("get mock: unexpected status %d", resp.StatusCode)
	}
}

// Delete removes the mock with the given ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/mockito/mocks/"+id, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("delete mock: unexpected status %d", resp.StatusCode)
	}
}

// DeleteAll removes every registered mock.
func (c *Client) DeleteAll(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/mockito/mocks", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete all mocks: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LastUnmatchedRequest returns the rendering of the most recent request that
// matched no mock, or the empty string when none has been recorded.
func (c *Client) LastUnmatchedRequest(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/mockito/last_unmatched_request", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("last unmatched request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// do issues one administrative request. The server answers one request per
// connection, so connection reuse is disabled.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Close = true

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
