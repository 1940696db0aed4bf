package models

import (
	"time"
)

// EventLocation describes where an event takes place.
type EventLocation struct {
	Name        string   `json:"name,omitempty"`
	Address     string   `json:"address,omitempty"`
	Coordinates *LatLong `json:"coordinates,omitempty"`
}

type LatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Organizer identifies who runs an event.
type Organizer struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Event is an attendable event. Capacity of nil means unlimited.
// IsActive=false is a soft delete; inactive events reject new attendance.
type Event struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Date            time.Time      `json:"date"`
	StartTime       time.Time      `json:"startTime"`
	EndTime         time.Time      `json:"endTime"`
	Location        *EventLocation `json:"location,omitempty"`
	Organizer       *Organizer     `json:"organizer,omitempty"`
	Capacity        *int           `json:"capacity,omitempty"`
	IsActive        bool           `json:"isActive"`
	AttendanceCount int            `json:"attendanceCount"`
	CreatedAt       time.Time      `json:"createdAt,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt,omitempty"`
}

// HasCapacity reports whether the event can accept another attendee.
func (e *Event) HasCapacity() bool {
	return e.Capacity == nil || e.AttendanceCount < *e.Capacity
}

// IsCurrentlyActive reports whether the event is active and in its time window.
func (e *Event) IsCurrentlyActive(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartTime) && !now.After(e.EndTime)
}

// EventList is a paginated slice of events.
type EventList struct {
	Events     []*Event `json:"events"`
	TotalCount int      `json:"totalCount"`
	HasMore    bool     `json:"hasMore"`
}
