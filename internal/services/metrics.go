package services

import (
	"sync"
	"time"
)

// Metrics collects client-side sync observability counters.
// Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	offlineOperations int
	successfulSyncs   int
	failedSyncs       int
	recordsSynced     int
	syncStartedAt     time.Time
	lastSyncDuration  time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordOfflineOperation counts a scan that could not be delivered immediately.
func (m *Metrics) RecordOfflineOperation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offlineOperations++
}

func (m *Metrics) RecordSyncStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncStartedAt = time.Now()
}

// RecordSyncComplete closes out a sync pass with its outcome and record count.
func (m *Metrics) RecordSyncComplete(success bool, recordCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.syncStartedAt.IsZero() {
		m.lastSyncDuration = time.Since(m.syncStartedAt)
	}
	if success {
		m.successfulSyncs++
	} else {
		m.failedSyncs++
	}
	m.recordsSynced += recordCount
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	OfflineOperations int           `json:"offlineOperations"`
	SuccessfulSyncs   int           `json:"successfulSyncs"`
	FailedSyncs       int           `json:"failedSyncs"`
	RecordsSynced     int           `json:"recordsSynced"`
	LastSyncDuration  time.Duration `json:"lastSyncDuration"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		OfflineOperations: m.offlineOperations,
		SuccessfulSyncs:   m.successfulSyncs,
		FailedSyncs:       m.failedSyncs,
		RecordsSynced:     m.recordsSynced,
		LastSyncDuration:  m.lastSyncDuration,
	}
}
