package repositories

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvkrishna/attendsync/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates the server tables and indexes if missing. Idempotent.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

type PostgresAttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAttendanceRepository(pool *pgxpool.Pool) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{pool: pool}
}

// Create inserts a record. The unique index on (event_id, user_id) turns a
// concurrent duplicate into ErrDuplicateAttendance regardless of what the
// caller checked beforehand.
func (r *PostgresAttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	location, err := marshalJSONB(record.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	deviceInfo, err := marshalJSONB(record.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.QRTimestamp.IsZero() {
		record.QRTimestamp = time.Now().UTC()
	}

	query := `INSERT INTO attendance (event_id, event_name, user_id, user_name, timestamp, qr_timestamp, location, device_info, local_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id, synced_at, created_at`

	var id uuid.UUID
	var syncedAt time.Time
	err = r.pool.QueryRow(ctx, query,
		record.EventID,
		record.EventName,
		record.UserID,
		record.UserName,
		record.Timestamp,
		record.QRTimestamp,
		location,
		deviceInfo,
		nullableInt64(record.LocalID),
	).Scan(&id, &syncedAt, &record.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateAttendance
	}
	if err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}

	record.ID = id.String()
	record.Synced = true
	record.SyncedAt = &syncedAt
	return nil
}

func (r *PostgresAttendanceRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*models.AttendanceRecord, error) {
	query := selectAttendance + ` WHERE event_id = $1 AND user_id = $2`

	row := r.pool.QueryRow(ctx, query, eventID, userID)
	record, err := scanAttendanceRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return record, nil
}

func (r *PostgresAttendanceRepository) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*models.AttendanceRecord, int, error) {
	return r.list(ctx, "event_id", eventID, limit, offset)
}

func (r *PostgresAttendanceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.AttendanceRecord, int, error) {
	return r.list(ctx, "user_id", userID, limit, offset)
}

func (r *PostgresAttendanceRepository) list(ctx context.Context, column, value string, limit, offset int) ([]*models.AttendanceRecord, int, error) {
	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance WHERE %s = $1", column)
	if err := r.pool.QueryRow(ctx, countQuery, value).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance: %w", err)
	}

	query := fmt.Sprintf("%s WHERE %s = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3", selectAttendance, column)
	rows, err := r.pool.Query(ctx, query, value, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		record, err := scanAttendanceRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating attendance: %w", err)
	}

	return records, total, nil
}

// StatsByUser computes the user's counts over the common reporting windows
// in one round trip.
func (r *PostgresAttendanceRepository) StatsByUser(ctx context.Context, userID string) (*models.AttendanceStats, error) {
	query := `SELECT
	            COUNT(*),
	            COUNT(*) FILTER (WHERE timestamp >= date_trunc('day', NOW())),
	            COUNT(*) FILTER (WHERE timestamp >= NOW() - INTERVAL '7 days'),
	            COUNT(*) FILTER (WHERE timestamp >= NOW() - INTERVAL '1 month')
	          FROM attendance WHERE user_id = $1`

	stats := &models.AttendanceStats{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&stats.Total, &stats.Today, &stats.ThisWeek, &stats.ThisMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

const selectAttendance = `SELECT id, event_id, event_name, user_id, user_name, timestamp, qr_timestamp, location, device_info, local_id, synced_at, created_at
	          FROM attendance`

func scanAttendanceRow(row pgx.Row) (*models.AttendanceRecord, error) {
	var (
		record               models.AttendanceRecord
		id                   uuid.UUID
		location, deviceInfo []byte
		localID              *int64
		syncedAt             time.Time
	)
	err := row.Scan(
		&id,
		&record.EventID,
		&record.EventName,
		&record.UserID,
		&record.UserName,
		&record.Timestamp,
		&record.QRTimestamp,
		&location,
		&deviceInfo,
		&localID,
		&syncedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ID = id.String()
	record.Synced = true
	record.SyncedAt = &syncedAt
	if localID != nil {
		record.LocalID = *localID
	}
	if location != nil {
		if err := json.Unmarshal(location, &record.Location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
	}
	if deviceInfo != nil {
		if err := json.Unmarshal(deviceInfo, &record.DeviceInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device info: %w", err)
		}
	}
	return &record, nil
}

func marshalJSONB(v any) ([]byte, error) {
	switch t := v.(type) {
	case *models.Location:
		if t == nil {
			return nil, nil
		}
	case *models.DeviceInfo:
		if t == nil {
			return nil, nil
		}
	case *models.EventLocation:
		if t == nil {
			return nil, nil
		}
	case *models.Organizer:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullableInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
