package models

import (
	"encoding/json"
	"time"
)

const (
	SyncItemTypeAttendance = "attendance"
	SyncItemTypeEvent      = "event"

	SyncActionCreate = "create"
)

// SyncQueueItem is a pending outbound operation awaiting delivery.
// Attempts only ever grows; the item is removed on success or when
// attempts reaches the configured maximum.
type SyncQueueItem struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
}

// StorageStats summarizes the local store's three collections.
type StorageStats struct {
	TotalAttendance    int `json:"totalAttendance"`
	TotalEvents        int `json:"totalEvents"`
	PendingSync        int `json:"pendingSync"`
	UnsyncedAttendance int `json:"unsyncedAttendance"`
}

// SyncStatus is the client's view of its synchronization state.
type SyncStatus struct {
	StorageStats
	IsOnline       bool       `json:"isOnline"`
	SyncInProgress bool       `json:"syncInProgress"`
	LastSync       *time.Time `json:"lastSync,omitempty"`
}
