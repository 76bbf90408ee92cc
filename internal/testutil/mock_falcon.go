// Package testutil provides testing utilities for the Falcon client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// TokenBehavior configures the mock token endpoint.
type TokenBehavior struct {
	// ExpiresIn is returned as expires_in (seconds).
	ExpiresIn int
	// StatusCode overrides the 201 the real endpoint answers with.
	StatusCode int
	// Body replaces the generated payload when non-empty.
	Body string
	// Delay is applied before answering.
	Delay time.Duration
}

// MockFalcon is a configurable mock API server for testing. It serves TLS so
// the client's https-only validation holds; use Client() as the transport.
type MockFalcon struct {
	server *httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	token         TokenBehavior
	tokenFailures int

	// Tracking
	tokenRequests  int
	requestCounts  map[string]int
	entityRequests map[string][]int
	lastTokenForm  url.Values
	lastAuthHeader string
}

// NewMockFalcon creates and starts a mock server.
func NewMockFalcon() *MockFalcon {
	mock := &MockFalcon{
		handlers:       make(map[string]http.HandlerFunc),
		requestCounts:  make(map[string]int),
		entityRequests: make(map[string][]int),
		token:          TokenBehavior{ExpiresIn: 1799},
	}

	mock.server = httptest.NewTLSServer(http.HandlerFunc(mock.serveHTTP))
	return mock
}

// URL returns the mock server base URL (https).
func (m *MockFalcon) URL() string {
	return m.server.URL
}

// Client returns an HTTP client trusting the mock server certificate.
func (m *MockFalcon) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockFalcon) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockFalcon) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for a path.
func (m *MockFalcon) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
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
	})
}

// SetTokenBehavior configures the token endpoint.
func (m *MockFalcon) SetTokenBehavior(b TokenBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = b
}

// FailTokenRequests makes the next n token requests answer 500.
func (m *MockFalcon) FailTokenRequests(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenFailures = n
}

// TokenRequestCount returns the number of token endpoint calls.
func (m *MockFalcon) TokenRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenRequests
}

// RequestCount returns the number of requests made to path.
func (m *MockFalcon) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCounts[path]
}

// EntityRequestSizes returns the number of ids sent per request to an
// endpoint registered with ServeEntities, in arrival order.
func (m *MockFalcon) EntityRequestSizes(path string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.entityRequests[path]...)
}

// LastTokenForm returns the form of the most recent token request.
func (m *MockFalcon) LastTokenForm() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastTokenForm
}

// LastAuthorization returns the Authorization header of the most recent
// resource request.
func (m *MockFalcon) LastAuthorization() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAuthHeader
}

// TokenValue returns the token the mock issues on the n-th (1-based) request.
func TokenValue(n int) string {
	return fmt.Sprintf("token-%d", n)
}

func (m *MockFalcon) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth2/token" {
		m.serveToken(w, r)
		return
	}

	m.mu.Lock()
	m.requestCounts[r.URL.Path]++
	m.lastAuthHeader = r.Header.Get("Authorization")
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"resources": []any{},
			"errors":    []map[string]any{{"code": 401, "message": "access denied, authorization failed"}},
		})
		return
	}

	if exists {
		handler(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"resources": []any{}, "meta": map[string]any{}})
}

func (m *MockFalcon) serveToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	m.mu.Lock()
	m.tokenRequests++
	n := m.tokenRequests
	m.lastTokenForm = r.PostForm
	behavior := m.token
	fail := m.tokenFailures > 0
	if fail {
		m.tokenFailures--
	}
	m.mu.Unlock()

	if behavior.Delay > 0 {
		time.Sleep(behavior.Delay)
	}

	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"errors": []map[string]any{{"code": 500, "message": "internal error"}},
		})
		return
	}

	status := behavior.StatusCode
	if status == 0 {
		status = http.StatusCreated
	}

	if behavior.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(behavior.Body))
		return
	}

	writeJSON(w, status, map[string]any{
		"access_token": TokenValue(n),
		"token_type":   "bearer",
		"expires_in":   behavior.ExpiresIn,
	})
}

// ServeCursorPages serves pages chained by a cursor. cursorParam is the query
// parameter and meta.pagination field carrying the cursor ("next_token" or
// "after"). The last page carries an empty cursor.
func (m *MockFalcon) ServeCursorPages(path, cursorParam string, pages [][]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		index := 0
		if cursor := r.URL.Query().Get(cursorParam); cursor != "" {
			i, err := strconv.Atoi(strings.TrimPrefix(cursor, "cursor-"))
			if err != nil || i >= len(pages) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"errors": []map[string]any{{"code": 400, "message": "invalid cursor"}},
				})
				return
			}
			index = i
		}

		next := ""
		if index+1 < len(pages) {
			next = fmt.Sprintf("cursor-%d", index+1)
		}

		var items []any
		if index < len(pages) {
			items = pages[index]
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"resources": nonNil(items),
			"meta": map[string]any{
				"pagination": map[string]any{cursorParam: next, "total": countAll(pages)},
			},
		})
	})
}

// ServeOffsetPages serves items by limit/offset. When withTotal is false the
// total field is omitted from meta.pagination.
func (m *MockFalcon) ServeOffsetPages(path string, items []any, withTotal bool) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 {
			limit = 100
		}

		start := min(offset, len(items))
		end := min(offset+limit, len(items))

		pagination := map[string]any{"offset": offset, "limit": limit}
		if withTotal {
			pagination["total"] = len(items)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"resources": nonNil(items[start:end]),
			"meta":      map[string]any{"pagination": pagination},
		})
	})
}

// ServeEntities serves a detail endpoint taking repeated "ids" query values.
// lookup maps an id to its resource; a nil result is skipped.
func (m *MockFalcon) ServeEntities(path string, lookup func(id string) any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["ids"]

		m.mu.Lock()
		m.entityRequests[path] = append(m.entityRequests[path], len(ids))
		m.mu.Unlock()

		resources := make([]any, 0, len(ids))
		for _, id := range ids {
			if res := lookup(id); res != nil {
				resources = append(resources, res)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "6000")
	w.Header().Set("X-RateLimit-Remaining", "5999")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func nonNil(items []any) []any {
	if items == nil {
		return []any{}
	}
	return items
}

func countAll(pages [][]any) int {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	return total
}
