package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
)

// SaveAttendance inserts a record with synced=false and enqueues the matching
// sync queue item in the same transaction, so a record never exists without
// its pending delivery (and vice versa). Assigns a fresh timestamp when the
// record carries none. Returns the new local id.
func (s *Store) SaveAttendance(ctx context.Context, record *models.AttendanceRecord) (int64, error) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.Synced = false

	var location, deviceInfo sql.NullString
	if record.Location != nil {
		data, err := json.Marshal(record.Location)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal location: %w", err)
		}
		location = sql.NullString{String: string(data), Valid: true}
	}
	if record.DeviceInfo != nil {
		data, err := json.Marshal(record.DeviceInfo)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal device info: %w", err)
		}
		deviceInfo = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO attendance (event_id, event_name, user_id, user_name, timestamp, qr_timestamp, location, device_info, synced)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`
	result, err := tx.ExecContext(ctx, query,
		record.EventID,
		record.EventName,
		record.UserID,
		record.UserName,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.QRTimestamp.UTC().Format(time.RFC3339Nano),
		location,
		deviceInfo,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attendance: %w", err)
	}

	localID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read attendance id: %w", err)
	}
	record.LocalID = localID

	// Queue item payload snapshots the record including its assigned id.
	payload, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	if _, err := enqueueTx(ctx, tx, models.SyncItemTypeAttendance, models.SyncActionCreate, payload); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit attendance: %w", err)
	}
	return localID, nil
}

// GetUnsynced returns every record not yet confirmed by the server.
func (s *Store) GetUnsynced(ctx context.Context) ([]*models.AttendanceRecord, error) {
	return s.queryAttendance(ctx, "WHERE synced = 0 ORDER BY id ASC")
}

// MarkAsSynced flips a record to synced. Idempotent; a missing id is a no-op.
func (s *Store) MarkAsSynced(ctx context.Context, localID int64) error {
	query := `UPDATE attendance SET synced = 1, synced_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), localID); err != nil {
		return fmt.Errorf("failed to mark attendance synced: %w", err)
	}
	return nil
}

func (s *Store) GetAllAttendance(ctx context.Context) ([]*models.AttendanceRecord, error) {
	return s.queryAttendance(ctx, "ORDER BY id ASC")
}

func (s *Store) GetAttendanceByEvent(ctx context.Context, eventID string) ([]*models.AttendanceRecord, error) {
	return s.queryAttendance(ctx, "WHERE event_id = ? ORDER BY id ASC", eventID)
}

func (s *Store) GetAttendanceByUser(ctx context.Context, userID string) ([]*models.AttendanceRecord, error) {
	return s.queryAttendance(ctx, "WHERE user_id = ? ORDER BY id ASC", userID)
}

// HasAttendance reports whether a local record exists for the pair. This is
// the advisory duplicate check; the server's unique constraint is the final
// arbiter.
func (s *Store) HasAttendance(ctx context.Context, eventID, userID string) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM attendance WHERE event_id = ? AND user_id = ?`
	if err := s.db.QueryRowContext(ctx, query, eventID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	return n > 0, nil
}

func (s *Store) queryAttendance(ctx context.Context, clause string, args ...any) ([]*models.AttendanceRecord, error) {
	query := `SELECT id, event_id, event_name, user_id, user_name, timestamp, qr_timestamp, location, device_info, synced, synced_at
	          FROM attendance ` + clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		record, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}
	return records, nil
}

func scanAttendance(rows *sql.Rows) (*models.AttendanceRecord, error) {
	var (
		record               models.AttendanceRecord
		timestamp, qrStamp   string
		location, deviceInfo sql.NullString
		synced               int
		syncedAt             sql.NullString
	)
	err := rows.Scan(
		&record.LocalID,
		&record.EventID,
		&record.EventName,
		&record.UserID,
		&record.UserName,
		&timestamp,
		&qrStamp,
		&location,
		&deviceInfo,
		&synced,
		&syncedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}

	if record.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if record.QRTimestamp, err = time.Parse(time.RFC3339Nano, qrStamp); err != nil {
		return nil, fmt.Errorf("failed to parse qr timestamp: %w", err)
	}
	record.Synced = synced != 0
	if syncedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, syncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse synced_at: %w", err)
		}
		record.SyncedAt = &t
	}
	if location.Valid {
		if err := json.Unmarshal([]byte(location.String), &record.Location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
	}
	if deviceInfo.Valid {
		if err := json.Unmarshal([]byte(deviceInfo.String), &record.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
		}
	}
	return &record, nil
}
