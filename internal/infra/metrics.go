package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersSubmitted atomic.Uint64
	ordersRejected  atomic.Uint64
	ordersExecuted  atomic.Uint64 // accepted orders with executed quantity > 0
	ordersCancelled atomic.Uint64
	eventsPublished atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCommand records one processed sequencer command with its latency.
func (m *Metrics) RecordCommand(latencyNs int64) {
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordSubmitted records an order reaching the matcher.
func (m *Metrics) RecordSubmitted() {
	m.ordersSubmitted.Add(1)
}

// RecordRejected records a pre-trade rejection.
func (m *Metrics) RecordRejected() {
	m.ordersRejected.Add(1)
}

// RecordExecuted records an order that traded.
func (m *Metrics) RecordExecuted() {
	m.ordersExecuted.Add(1)
}

// RecordCancelled records a cancel request.
func (m *Metrics) RecordCancelled() {
	m.ordersCancelled.Add(1)
}

// RecordEvent records a published event.
func (m *Metrics) RecordEvent() {
	m.eventsPublished.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersSubmitted   uint64    `json:"orders_submitted"`
	OrdersRejected    uint64    `json:"orders_rejected"`
	OrdersExecuted    uint64    `json:"orders_executed"`
	OrdersCancelled   uint64    `json:"orders_cancelled"`
	EventsPublished   uint64    `json:"events_published"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersSubmitted:   m.ordersSubmitted.Load(),
		OrdersRejected:    m.ordersRejected.Load(),
		OrdersExecuted:    m.ordersExecuted.Load(),
		OrdersCancelled:   m.ordersCancelled.Load(),
		EventsPublished:   m.eventsPublished.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersSubmitted.Store(0)
	m.ordersRejected.Store(0)
	m.ordersExecuted.Store(0)
	m.ordersCancelled.Store(0)
	m.eventsPublished.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
