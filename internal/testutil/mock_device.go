// Package testutil provides a mock appliance management API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// LinkBase is the scheme and host the mock puts into selfLink/nextLink/link values.
// Devices report links against their own name, not the address the client used.
const LinkBase = "https://localhost"

// MockResponse defines one canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDevice is a configurable mock appliance for testing.
type MockDevice struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	counts      map[string]int
	total       int
	inFlight    int
	maxInFlight int
	lastHeader  http.Header
	started     []string
}

// NewMockDevice starts a mock device on a local HTTP listener.
func NewMockDevice() *MockDevice {
	mock := &MockDevice{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.counts[r.URL.Path]++
		mock.total++
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		mock.lastHeader = r.Header.Clone()
		mock.started = append(mock.started, r.URL.Path)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		if !exists {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"code":    404,
				"message": fmt.Sprintf("Public URI path not registered: %s", r.URL.Path),
			})
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDevice) URL() string {
	return m.server.URL
}

// Host returns the listener host.
func (m *MockDevice) Host() string {
	u, _ := url.Parse(m.server.URL)
	return u.Hostname()
}

// Port returns the listener port.
func (m *MockDevice) Port() int {
	u, _ := url.Parse(m.server.URL)
	_, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return port
}

// Close shuts down the mock server.
func (m *MockDevice) Close() {
	m.server.Close()
}

// Reset clears all tracking counters. Handlers stay registered.
func (m *MockDevice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.total = 0
	m.maxInFlight = m.inFlight
	m.lastHeader = nil
	m.started = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockDevice) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockDevice) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, responseHandler(resp))
}

// SetJSON serves v as a 200 JSON body, after delay.
func (m *MockDevice) SetJSON(path string, v any, delay time.Duration) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode %s: %v", path, err))
	}
	m.SetResponse(path, NewJSONResponse(string(body), delay))
}

// SetSequence serves the responses in order; the last one repeats.
func (m *MockDevice) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		responseHandler(resp)(w, r)
	})
}

// SetPages serves a collection split into pages linked by nextLink. Pages are
// addressed with $skip like the real API. extra holds the top-level fields of
// every page besides items and nextLink.
func (m *MockDevice) SetPages(path string, extra map[string]any, pages ...[]any) {
	offsets := make([]int, len(pages))
	total := 0
	for i, p := range pages {
		offsets[i] = total
		total += len(p)
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		index := -1
		for i, off := range offsets {
			if off == skip {
				index = i
				break
			}
		}
		if index < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "bad $skip"})
			return
		}

		body := make(map[string]any, len(extra)+2)
		for k, v := range extra {
			body[k] = v
		}
		body["items"] = pages[index]
		if index < len(pages)-1 {
			q := url.Values{}
			q.Set("$top", r.URL.Query().Get("$top"))
			q.Set("$skip", strconv.Itoa(offsets[index+1]))
			body["nextLink"] = Link(path) + "?" + q.Encode()
		}
		writeJSON(w, http.StatusOK, body)
	})
}

// SetStats serves the stats sub-resource of the object at path.
func (m *MockDevice) SetStats(path string, entries map[string]any) {
	m.SetJSON(path+"/stats", map[string]any{
		"kind":     "tm:stats",
		"selfLink": Link(path + "/stats"),
		"entries":  entries,
	}, 0)
}

// RequestCount returns the number of requests made to path.
func (m *MockDevice) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockDevice) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockDevice) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// LastHeader returns the headers of the latest request.
func (m *MockDevice) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// Started returns request paths in arrival order.
func (m *MockDevice) Started() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.started...)
}

// Link returns the absolute link the device would report for path.
func Link(path string) string {
	return LinkBase + path
}

// Ref returns a reference object pointing at path.
func Ref(path string) map[string]any {
	return map[string]any{"link": Link(path)}
}

// Item returns a collection element with a selfLink for path.
func Item(name, path string) map[string]any {
	return map[string]any{
		"kind":     "tm:item",
		"name":     name,
		"selfLink": Link(path),
	}
}

// StatValue returns a numeric stats leaf.
func StatValue(v float64) map[string]any {
	return map[string]any{"value": v}
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string, delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Delay:      delay,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=UTF-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":500,"message":"Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=UTF-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"code":401,"message":"Authorization failed: no user authentication header or token detected."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=UTF-8",
		},
	}
}

func responseHandler(resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
