// Package httputil provides HTTP client abstractions for testability.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/surrogate/internal/timeutil"
)

// HTTPClient abstracts HTTP operations for testability. *http.Client
// satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Defaults for RetryClient.
const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// RetryClient retries bodiless requests that fail in transport or come back
// with 429, 502, 503 or 504. The wait doubles after each attempt and is cut
// short when the request context is done.
type RetryClient struct {
	Next     HTTPClient
	Attempts int
	Backoff  time.Duration
	Clock    timeutil.Clock
	// OnRetry, when set, is called before each wait.
	OnRetry func(req *http.Request, attempt int, wait time.Duration, cause string)
}

// NewRetryClient wraps next with DefaultAttempts and DefaultBackoff.
func NewRetryClient(next HTTPClient) *RetryClient {
	return &RetryClient{Next: next, Attempts: DefaultAttempts, Backoff: DefaultBackoff, Clock: timeutil.RealClock{}}
}

// Do sends req, retrying as described on RetryClient. The last response or
// error is returned once attempts run out.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	attempts := max(c.Attempts, 1)
	if req.Body != nil && req.Body != http.NoBody {
		attempts = 1
	}
	clock := c.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	wait := c.Backoff

	for attempt := 1; ; attempt++ {
		resp, err := c.Next.Do(req)
		if attempt >= attempts || req.Context().Err() != nil {
			return resp, err
		}
		var cause string
		switch {
		case err != nil:
			cause = err.Error()
		case retryable(resp.StatusCode):
			cause = resp.Status
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		default:
			return resp, nil
		}
		if c.OnRetry != nil {
			c.OnRetry(req, attempt, wait, cause)
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-clock.After(wait):
		}
		wait *= 2
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// MockHTTPClient provides a testable HTTP client implementation.
type MockHTTPClient struct {
	mu          sync.Mutex
	Requests    []*http.Request
	Responses   []*MockResponse
	responseIdx int
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a response to be returned by subsequent requests.
func (m *MockHTTPClient) AddResponse(statusCode int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues an error response.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
	return m
}

// Do records the request and returns the next queued response, or an empty
// 200 once the queue is exhausted.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	status, body := http.StatusOK, ""
	if m.responseIdx < len(m.Responses) {
		resp := m.Responses[m.responseIdx]
		m.responseIdx++
		if resp.Error != nil {
			return nil, resp.Error
		}
		status, body = resp.StatusCode, resp.Body
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
