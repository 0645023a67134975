// Package testutil provides testing utilities for the Sincera processor.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// PublishersPath is the lookup path served by the mock.
const PublishersPath = "/api/publishers"

// MockResponse defines the behavior for one mock lookup response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSincera is a configurable mock of the Sincera publisher API.
// Responses are keyed by DomainKey/IDKey. A key configured with a sequence
// serves the responses in order and then keeps repeating the last one.
type MockSincera struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string][]MockResponse
	served    map[string]int

	requestCount      int
	lastRequestHeader http.Header
}

// DomainKey is the response key for a domain lookup.
func DomainKey(domain string) string {
	return "domain=" + domain
}

// IDKey is the response key for a publisher id lookup.
func IDKey(id string) string {
	return "id=" + id
}

// NewMockSincera creates and starts a mock server.
func NewMockSincera() *MockSincera {
	mock := &MockSincera{
		responses: make(map[string][]MockResponse),
		served:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the lookup endpoint URL of the mock.
func (m *MockSincera) URL() string {
	return m.server.URL + PublishersPath
}

// Close shuts down the mock server.
func (m *MockSincera) Close() {
	m.server.Close()
}

// SetResponse configures a single response for key.
func (m *MockSincera) SetResponse(key string, resp MockResponse) {
	m.SetSequence(key, resp)
}

// SetSequence configures responses served in order for key.
func (m *MockSincera) SetSequence(key string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = resps
	m.served[key] = 0
}

// GetRequestCount returns the number of lookup requests received.
func (m *MockSincera) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// RequestsFor returns how many requests were received for key.
func (m *MockSincera) RequestsFor(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served[key]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSincera) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequestHeader
}

func (m *MockSincera) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != PublishersPath {
		http.NotFound(w, r)
		return
	}

	key := IDKey(r.URL.Query().Get("id"))
	if domain := r.URL.Query().Get("domain"); domain != "" {
		key = DomainKey(domain)
	}

	m.mu.Lock()
	m.requestCount++
	m.lastRequestHeader = r.Header.Clone()
	n := m.served[key]
	m.served[key] = n + 1
	seq, ok := m.responses[key]
	m.mu.Unlock()

	resp := NewNotFoundResponse()
	if ok && len(seq) > 0 {
		if n >= len(seq) {
			n = len(seq) - 1
		}
		resp = seq[n]
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewPublisherResponse creates a 200 OK response with a JSON body.
func NewPublisherResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Publisher not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response. An empty
// retryAfter omits the header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": "Invalid token"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
