package observability

import (
	"sync"
	"time"
)

type requestKey struct {
	path   string
	method string
	status int
}

type errorKey struct {
	path   string
	method string
	code   string
}

// Metrics keeps in-memory request and error counters, keyed by route,
// method and outcome. Snapshot accessors exist for tests and future export.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[requestKey]int64
	totalDuration map[requestKey]time.Duration
	errorCount    map[errorKey]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[requestKey]int64),
		totalDuration: make(map[requestKey]time.Duration),
		errorCount:    make(map[errorKey]int64),
	}
}

// RecordRequest counts a completed request and accumulates its duration.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := requestKey{path: path, method: method, status: status}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalDuration[key] += duration
}

// RecordError counts a request that failed with the given error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := errorKey{path: path, method: method, code: code}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Requests reports the count for one route/method/status combination.
func (m *Metrics) Requests(path, method string, status int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[requestKey{path: path, method: method, status: status}]
}

// Errors reports the count for one route/method/code combination.
func (m *Metrics) Errors(path, method, code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount[errorKey{path: path, method: method, code: code}]
}
