package repositories

import (
	"context"
	"errors"

	"github.com/nvkrishna/attendsync/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAttendance is returned when (eventID, userID) already has a
	// record. The unique index behind it is the authoritative duplicate guard
	// for the whole system.
	ErrDuplicateAttendance = errors.New("attendance already recorded for this event")
	ErrEventExists         = errors.New("event with this ID already exists")
)

type AttendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error)
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*models.AttendanceRecord, int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, int, error)
	StatsByUser(ctx context.Context, userID string) (*models.AttendanceStats, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, limit, offset int, activeOnly *bool) ([]*models.Event, int, error)
	Update(ctx context.Context, event *models.Event) error
	Deactivate(ctx context.Context, id string) (*models.Event, error)
	IncrementAttendance(ctx context.Context, id string) error
}

// EventCache is a read-through cache in front of EventRepository lookups.
// A miss returns (nil, nil); cache failures are soft and never block reads.
type EventCache interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	SetEvent(ctx context.Context, event *models.Event) error
	Invalidate(ctx context.Context, id string) error
}
