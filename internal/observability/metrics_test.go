package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordRequest("/api/tickets/:id", "PUT", 403, time.Millisecond)
	m.RecordError("/api/tickets/:id", "PUT", "PERMISSION_DENIED")

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 2)
	assert.Equal(t, "/api/tickets/:id|PUT|403", snap.Requests[0].Key)
	assert.Equal(t, "/api/tickets|GET|200", snap.Requests[1].Key)
	assert.EqualValues(t, 2, snap.Requests[1].Count)
	assert.InDelta(t, 20.0, snap.Requests[1].AvgMillis, 0.001)

	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "/api/tickets/:id|PUT|PERMISSION_DENIED", snap.Errors[0].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "INTERNAL_ERROR")
	assert.Empty(t, m.Snapshot().Requests)
}
