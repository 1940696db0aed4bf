package services

import (
	"context"
	"errors"
	"log"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/nvkrishna/attendsync/internal/client"
	"github.com/nvkrishna/attendsync/internal/connectivity"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/qr"
	"github.com/nvkrishna/attendsync/internal/store"
)

// ErrDuplicateScan is returned when the user already has a local record for
// the event.
var ErrDuplicateScan = errors.New("attendance already recorded for this event")

// AttendanceService turns a validated scan into a durable record and attempts
// best-effort immediate delivery. The local write is the durability
// guarantee: no scan is ever lost to a network failure.
type AttendanceService struct {
	store           *store.Store
	api             *client.Client
	conn            connectivity.Monitor
	location        LocationProvider
	metrics         *Metrics
	locationTimeout time.Duration
}

func NewAttendanceService(
	st *store.Store,
	api *client.Client,
	conn connectivity.Monitor,
	location LocationProvider,
	metrics *Metrics,
	locationTimeout time.Duration,
) *AttendanceService {
	return &AttendanceService{
		store:           st,
		api:             api,
		conn:            conn,
		location:        location,
		metrics:         metrics,
		locationTimeout: locationTimeout,
	}
}

// RecordResult reports the outcome of a recorded scan.
type RecordResult struct {
	Success bool   `json:"success"`
	LocalID int64  `json:"localId"`
	Message string `json:"message"`
}

// ValidateScan runs the pre-checks every scan must pass before recording:
// payload validation (shape, type marker, expiry) and the advisory local
// duplicate check. Validation failures are never persisted.
func (s *AttendanceService) ValidateScan(ctx context.Context, payload *qr.Payload, userID string) error {
	if payload == nil {
		return qr.ErrInvalidFormat
	}
	if err := payload.Validate(time.Now()); err != nil {
		return err
	}

	exists, err := s.store.HasAttendance(ctx, payload.EventID, userID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateScan
	}
	return nil
}

// RecordAttendance persists the scan locally (always), then attempts one
// immediate delivery if online. Transient delivery failures are not surfaced
// as errors; the sync engine retries them later. Only a local storage failure
// makes recording fail.
func (s *AttendanceService) RecordAttendance(ctx context.Context, payload *qr.Payload, userID, userName string) (*RecordResult, error) {
	record := &models.AttendanceRecord{
		EventID:     payload.EventID,
		EventName:   payload.EventName,
		UserID:      userID,
		UserName:    userName,
		Timestamp:   time.Now().UTC(),
		QRTimestamp: payload.Timestamp,
		Location:    s.bestEffortLocation(ctx),
		DeviceInfo:  deviceInfo(),
	}

	localID, err := s.store.SaveAttendance(ctx, record)
	if err != nil {
		return nil, err
	}

	online := s.conn.Online()
	if online {
		if err := s.deliverNow(ctx, record); err != nil {
			log.Printf("attendance %d saved offline, will sync when connection is restored: %v", localID, err)
			s.metrics.RecordOfflineOperation()
		}
	} else {
		s.metrics.RecordOfflineOperation()
	}

	message := "Attendance saved offline"
	if online {
		message = "Attendance recorded successfully"
	}
	return &RecordResult{Success: true, LocalID: localID, Message: message}, nil
}

// deliverNow posts a single record and marks it synced. A server-side
// duplicate means the record is already canonical, so it counts as delivered.
func (s *AttendanceService) deliverNow(ctx context.Context, record *models.AttendanceRecord) error {
	_, err := s.api.PostAttendance(ctx, record)
	if err != nil && !errors.Is(err, client.ErrDuplicateAttendance) {
		return err
	}
	return s.store.MarkAsSynced(ctx, record.LocalID)
}

// bestEffortLocation resolves the current position within the configured
// timeout. Denial, timeout, and errors all resolve to nil rather than
// failing the scan.
func (s *AttendanceService) bestEffortLocation(ctx context.Context) *models.Location {
	if s.location == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.locationTimeout)
	defer cancel()

	loc, err := s.location.CurrentLocation(ctx)
	if err != nil {
		log.Printf("location unavailable: %v", err)
		return nil
	}
	return loc
}

func deviceInfo() *models.DeviceInfo {
	hostname, _ := os.Hostname()
	return &models.DeviceInfo{
		Hostname:  hostname,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Timestamp: time.Now().UTC(),
	}
}

// GetAttendanceHistory returns the user's local records, newest first.
func (s *AttendanceService) GetAttendanceHistory(ctx context.Context, userID string) ([]*models.AttendanceRecord, error) {
	records, err := s.store.GetAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// GetEventAttendance returns local records for one event.
func (s *AttendanceService) GetEventAttendance(ctx context.Context, eventID string) ([]*models.AttendanceRecord, error) {
	return s.store.GetAttendanceByEvent(ctx, eventID)
}

// GetAttendanceStats summarizes the user's history over common windows.
func (s *AttendanceService) GetAttendanceStats(ctx context.Context, userID string) (*models.AttendanceStats, error) {
	records, err := s.store.GetAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.AddDate(0, 0, -7)
	monthStart := now.AddDate(0, -1, 0)

	stats := &models.AttendanceStats{Total: len(records)}
	for _, record := range records {
		ts := record.Timestamp.In(now.Location())
		if !ts.Before(dayStart) {
			stats.Today++
		}
		if !ts.Before(weekStart) {
			stats.ThisWeek++
		}
		if !ts.Before(monthStart) {
			stats.ThisMonth++
		}
		if !record.Synced {
			stats.Unsynced++
		}
	}
	return stats, nil
}
