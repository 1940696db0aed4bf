package models

import (
	"time"
)

// Location is a best-effort GPS fix captured at scan time.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// DeviceInfo is diagnostic metadata about the scanning device.
type DeviceInfo struct {
	Hostname  string    `json:"hostname"`
	Platform  string    `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}

// AttendanceRecord is a single scan of an event QR code by a user.
// LocalID is assigned by the local store; the server assigns its own ID
// and echoes LocalID back so the client can reconcile.
type AttendanceRecord struct {
	LocalID     int64       `json:"localId,omitempty"`
	ID          string      `json:"id,omitempty"`
	EventID     string      `json:"eventId"`
	EventName   string      `json:"eventName"`
	UserID      string      `json:"userId"`
	UserName    string      `json:"userName"`
	Timestamp   time.Time   `json:"timestamp"`
	QRTimestamp time.Time   `json:"qrTimestamp"`
	Location    *Location   `json:"location,omitempty"`
	DeviceInfo  *DeviceInfo `json:"deviceInfo,omitempty"`
	Synced      bool        `json:"synced"`
	SyncedAt    *time.Time  `json:"syncedAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty"`
}

// AttendanceStats summarizes a user's attendance history.
type AttendanceStats struct {
	Total     int `json:"total"`
	Today     int `json:"today"`
	ThisWeek  int `json:"thisWeek"`
	ThisMonth int `json:"thisMonth"`
	Unsynced  int `json:"unsynced"`
}

// AttendanceList is a paginated slice of attendance records.
type AttendanceList struct {
	Attendance []*AttendanceRecord `json:"attendance"`
	TotalCount int                 `json:"totalCount"`
	HasMore    bool                `json:"hasMore"`
}
