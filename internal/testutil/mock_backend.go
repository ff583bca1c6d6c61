// Package testutil provides testing utilities for the replaying proxy.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock backend response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// route identifies a scripted response. An empty body matches any body.
type route struct {
	method     string
	requestURI string
	body       string
}

// MockBackend is a scriptable backend for testing. Responses are matched on
// method, path with query and, optionally, the request body.
type MockBackend struct {
	server *httptest.Server
	mu     sync.RWMutex
	routes map[route]MockResponse
	counts map[route]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestBody   string
}

// NewMockBackend creates and starts a new mock backend.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		routes: make(map[route]MockResponse),
		counts: make(map[route]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		uri := r.URL.RequestURI()

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestBody = string(body)
		mock.counts[route{method: r.Method, requestURI: uri}]++

		resp, exists := mock.routes[route{method: r.Method, requestURI: uri, body: string(body)}]
		if !exists {
			resp, exists = mock.routes[route{method: r.Method, requestURI: uri}]
		}
		mock.mu.Unlock()

		if !exists {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no mock configured for " + r.Method + " " + uri))
			return
		}
		writeResponse(w, resp)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all tracking counters. Scripted responses are kept.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastRequestBody = ""
	m.counts = make(map[route]int)
}

// SetResponse configures the response for method and requestURI
// (path with query), whatever the request body.
func (m *MockBackend) SetResponse(method, requestURI string, resp MockResponse) {
	m.SetResponseForBody(method, requestURI, "", resp)
}

// SetResponseForBody configures the response for requests that also carry
// exactly body.
func (m *MockBackend) SetResponseForBody(method, requestURI, body string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route{method: method, requestURI: requestURI, body: body}] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBackend) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestCountFor returns the number of requests made for method and
// requestURI, whatever their bodies.
func (m *MockBackend) GetRequestCountFor(method, requestURI string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[route{method: method, requestURI: requestURI}]
}

// GetLastRequestBody returns the body of the most recent request.
func (m *MockBackend) GetLastRequestBody() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestBody
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewTextResponse creates a response with a text/plain body.
func NewTextResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
	}
}

// NewJSONResponse creates a response with an application/json body.
func NewJSONResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return NewJSONResponse(http.StatusInternalServerError, `{"error": "Internal server error"}`)
}
