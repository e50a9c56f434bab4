// Package testutil provides a mock PokeAPI server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

var starterNames = []string{
	"bulbasaur", "ivysaur", "venusaur", "charmander", "charmeleon", "charizard",
	"squirtle", "wartortle", "blastoise", "caterpie",
}

// MockResponse forces the next list request to answer with a fixed status.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockPokeAPI serves GET /pokemon?offset&limit from a generated roster of Total entries.
type MockPokeAPI struct {
	server *httptest.Server

	mu           sync.Mutex
	total        int
	delay        time.Duration
	cacheControl string
	forced       []MockResponse
	handlers     map[string]http.HandlerFunc

	requestCount     int
	conditionalCount int
	queries          []url.Values
	lastHeader       http.Header
}

// NewMockPokeAPI starts a mock serving total Pokémon.
func NewMockPokeAPI(total int) *MockPokeAPI {
	m := &MockPokeAPI{
		total:    total,
		handlers: make(map[string]http.HandlerFunc),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requestCount++
		m.lastHeader = r.Header.Clone()
		m.queries = append(m.queries, r.URL.Query())
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			m.conditionalCount++
		}
		delay := m.delay
		handler, custom := m.handlers[r.URL.Path]
		var forced *MockResponse
		if len(m.forced) > 0 {
			f := m.forced[0]
			m.forced = m.forced[1:]
			forced = &f
		}
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if forced != nil {
			for k, v := range forced.Headers {
				w.Header().Set(k, v)
			}
			w.WriteHeader(forced.StatusCode)
			if forced.Body != "" {
				w.Write([]byte(forced.Body))
			}
			return
		}

		if custom {
			handler(w, r)
			return
		}

		if r.URL.Path == "/pokemon" {
			m.listHandler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return m
}

// URL returns the mock base URL.
func (m *MockPokeAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPokeAPI) Close() {
	m.server.Close()
}

// SetDelay delays every response. The delay ends early when the request is cancelled.
func (m *MockPokeAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetCacheControl sets the Cache-Control header sent with list responses.
func (m *MockPokeAPI) SetCacheControl(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheControl = v
}

// SetHandler overrides the handler for a path.
func (m *MockPokeAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// QueueResponse makes the next request (of any path) answer with resp.
func (m *MockPokeAPI) QueueResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = append(m.forced, resp)
}

// FailNext makes the next n requests answer with status.
func (m *MockPokeAPI) FailNext(status, n int) {
	for i := 0; i < n; i++ {
		m.QueueResponse(MockResponse{
			StatusCode: status,
			Body:       fmt.Sprintf(`{"detail": %q}`, http.StatusText(status)),
		})
	}
}

// RequestCount returns the number of requests received.
func (m *MockPokeAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ConditionalCount returns the number of requests with validators.
func (m *MockPokeAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// LastHeader returns the headers of the most recent request.
func (m *MockPokeAPI) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// Offsets returns the offset query value of every request, in arrival order.
func (m *MockPokeAPI) Offsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.queries))
	for _, q := range m.queries {
		n, _ := strconv.Atoi(q.Get("offset"))
		out = append(out, n)
	}
	return out
}

// Name returns the roster name for id.
func Name(id int) string {
	if id >= 1 && id <= len(starterNames) {
		return starterNames[id-1]
	}
	return fmt.Sprintf("pokemon-%d", id)
}

func (m *MockPokeAPI) listHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, limit := 0, 20
	var err error
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			http.Error(w, `{"detail": "invalid offset"}`, http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			http.Error(w, `{"detail": "invalid limit"}`, http.StatusBadRequest)
			return
		}
	}

	etag := fmt.Sprintf(`"roster-%d-%d-%d"`, m.total, offset, limit)
	m.mu.Lock()
	cacheControl := m.cacheControl
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", etag)
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	type result struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	body := struct {
		Count    int      `json:"count"`
		Next     *string  `json:"next"`
		Previous *string  `json:"previous"`
		Results  []result `json:"results"`
	}{Count: m.total, Results: []result{}}

	for id := offset + 1; id <= offset+limit && id <= m.total; id++ {
		body.Results = append(body.Results, result{
			Name: Name(id),
			URL:  fmt.Sprintf("%s/pokemon/%d/", m.server.URL, id),
		})
	}
	if offset+limit < m.total {
		next := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", m.server.URL, offset+limit, limit)
		body.Next = &next
	}
	if offset > 0 {
		prev := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", m.server.URL, max(0, offset-limit), limit)
		body.Previous = &prev
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
