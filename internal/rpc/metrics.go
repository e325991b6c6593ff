package rpc

import "sync/atomic"

// Metrics tracks connection-admission counters for the daemon's health
// and diagnostics surface.
type Metrics struct {
	accepted int64
	rejected int64
}

// NewMetrics builds an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordConnection counts one admitted connection.
func (m *Metrics) RecordConnection() {
	atomic.AddInt64(&m.accepted, 1)
}

// RecordRejectedConnection counts one connection turned away because
// the server was already at its connection-semaphore capacity.
func (m *Metrics) RecordRejectedConnection() {
	atomic.AddInt64(&m.rejected, 1)
}

// Accepted returns the total number of connections admitted so far.
func (m *Metrics) Accepted() int64 {
	return atomic.LoadInt64(&m.accepted)
}

// Rejected returns the total number of connections rejected so far.
func (m *Metrics) Rejected() int64 {
	return atomic.LoadInt64(&m.rejected)
}
