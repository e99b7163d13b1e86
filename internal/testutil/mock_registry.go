// Package testutil provides a configurable mock crate registry for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock registry endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRegistry is a configurable in-process crate registry for testing.
type MockRegistry struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header

	active    int
	maxActive int
}

// NewMockRegistry creates a mock registry server. Unconfigured paths return
// a crates.io style 404 error envelope.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		mock.active++
		if mock.active > mock.maxActive {
			mock.maxActive = mock.active
		}
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.active--
			mock.mu.Unlock()
		}()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"errors":[{"detail":"Not Found"}]}`)
	}))

	return mock
}

// URL returns the mock server URL (use it as the registry base URL).
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRegistry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
	m.maxActive = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRegistry) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a static response for a path.
func (m *MockRegistry) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the total number of requests served.
func (m *MockRegistry) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsFor returns the number of requests served for one path.
func (m *MockRegistry) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockRegistry) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// MaxActive returns the highest number of requests the server handled
// simultaneously. For a single rate-limited client this must stay at 1.
func (m *MockRegistry) MaxActive() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxActive
}

// crateRecord is a minimal crate listing entry, enough for the client's
// schema to decode.
type crateRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MaxVersion string `json:"max_version"`
	Downloads  uint64 `json:"downloads"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func newCrateRecord(index int) crateRecord {
	name := fmt.Sprintf("crate-%03d", index)
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).
		Add(time.Duration(index) * time.Hour).Format(time.RFC3339)
	return crateRecord{
		ID:         name,
		Name:       name,
		MaxVersion: "1.0.0",
		Downloads:  uint64(1000 + index),
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
	}
}

// ServeCrateListing installs a paginated /crates handler backed by a
// generated data set of total crates. Each response carries the explicit
// meta.total field, mirroring crates.io.
func (m *MockRegistry) ServeCrateListing(total int) {
	m.SetHandler("/crates", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if perPage < 1 {
			perPage = 30
		}

		start := (page - 1) * perPage
		end := start + perPage
		if start > total {
			start = total
		}
		if end > total {
			end = total
		}

		crates := make([]crateRecord, 0, end-start)
		for i := start; i < end; i++ {
			crates = append(crates, newCrateRecord(i))
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{
			"crates": crates,
			"meta":   map[string]any{"total": total},
		})
	})
}

// CrateBody returns a single-crate response payload for the given name.
func CrateBody(name, maxVersion string) string {
	return fmt.Sprintf(`{
		"crate": {
			"id": %[1]q,
			"name": %[1]q,
			"description": "a test crate",
			"downloads": 4242,
			"max_version": %[2]q,
			"created_at": "2024-01-01T00:00:00Z",
			"updated_at": "2024-06-01T00:00:00Z",
			"links": {
				"owners": "/api/v1/crates/%[1]s/owners",
				"reverse_dependencies": "/api/v1/crates/%[1]s/reverse_dependencies",
				"version_downloads": "/api/v1/crates/%[1]s/downloads",
				"owner_team": "",
				"owner_user": ""
			}
		},
		"categories": [],
		"keywords": [],
		"versions": [
			{
				"crate": %[1]q,
				"num": %[2]q,
				"id": 1,
				"dl_path": "/api/v1/crates/%[1]s/%[2]s/download",
				"downloads": 4242,
				"yanked": false,
				"license": "MIT",
				"features": {},
				"created_at": "2024-06-01T00:00:00Z",
				"updated_at": "2024-06-01T00:00:00Z",
				"links": {
					"dependencies": "/api/v1/crates/%[1]s/%[2]s/dependencies",
					"version_downloads": ""
				}
			}
		]
	}`, name, maxVersion)
}

// ErrorBody returns a crates.io error envelope with the given details.
func ErrorBody(details ...string) string {
	payload := map[string]any{"errors": []map[string]string{}}
	errs := make([]map[string]string, 0, len(details))
	for _, d := range details {
		errs = append(errs, map[string]string{"detail": d})
	}
	payload["errors"] = errs
	out, _ := json.Marshal(payload)
	return string(out)
}
