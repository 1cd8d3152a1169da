package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	totalDuration map[string]time.Duration
}

// Counter is one entry of a metrics snapshot.
type Counter struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
	// AvgMillis is set for request counters only.
	AvgMillis float64 `json:"avgMillis,omitempty"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests []Counter `json:"requests"`
	Errors   []Counter `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := counterKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := counterKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the counters, sorted by key.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Requests: []Counter{}, Errors: []Counter{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests: make([]Counter, 0, len(m.requestCount)),
		Errors:   make([]Counter, 0, len(m.errorCount)),
	}
	for key, count := range m.requestCount {
		avg := float64(m.totalDuration[key].Microseconds()) / 1000 / float64(count)
		snap.Requests = append(snap.Requests, Counter{Key: key, Count: count, AvgMillis: avg})
	}
	for key, count := range m.errorCount {
		snap.Errors = append(snap.Errors, Counter{Key: key, Count: count})
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Key < snap.Requests[j].Key })
	sort.Slice(snap.Errors, func(i, j int) bool { return snap.Errors[i].Key < snap.Errors[j].Key })
	return snap
}

func counterKey(parts ...string) string {
	return strings.Join(parts, "|")
}
