package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvkrishna/attendsync/internal/models"
)

type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

func (r *PostgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	location, err := marshalJSONB(event.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	organizer, err := marshalJSONB(event.Organizer)
	if err != nil {
		return fmt.Errorf("failed to marshal organizer: %w", err)
	}

	query := `INSERT INTO events (id, name, description, date, start_time, end_time, location, organizer, capacity, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
	          RETURNING created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		event.ID,
		event.Name,
		event.Description,
		event.Date,
		event.StartTime,
		event.EndTime,
		location,
		organizer,
		event.Capacity,
	).Scan(&event.CreatedAt, &event.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEventExists
	}
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.IsActive = true
	event.AttendanceCount = 0
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	row := r.pool.QueryRow(ctx, selectEvent+` WHERE id = $1`, id)
	event, err := scanEventRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *PostgresEventRepository) List(ctx context.Context, limit, offset int, activeOnly *bool) ([]*models.Event, int, error) {
	where := ""
	args := []any{limit, offset}
	countArgs := []any{}
	if activeOnly != nil {
		where = " WHERE is_active = $3"
		args = append(args, *activeOnly)
		countArgs = append(countArgs, *activeOnly)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM events"
	if activeOnly != nil {
		countQuery += " WHERE is_active = $1"
	}
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := selectEvent + where + ` ORDER BY date DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating events: %w", err)
	}

	return events, total, nil
}

// Update writes the mutable fields. ID, attendance count, and creation time
// never change through this path.
func (r *PostgresEventRepository) Update(ctx context.Context, event *models.Event) error {
	location, err := marshalJSONB(event.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	organizer, err := marshalJSONB(event.Organizer)
	if err != nil {
		return fmt.Errorf("failed to marshal organizer: %w", err)
	}

	query := `UPDATE events
	          SET name = $1,
	              description = $2,
	              date = $3,
	              start_time = $4,
	              end_time = $5,
	              location = $6,
	              organizer = $7,
	              capacity = $8,
	              is_active = $9,
	              updated_at = NOW()
	          WHERE id = $10
	          RETURNING updated_at`

	err = r.pool.QueryRow(ctx, query,
		event.Name,
		event.Description,
		event.Date,
		event.StartTime,
		event.EndTime,
		location,
		organizer,
		event.Capacity,
		event.IsActive,
		event.ID,
	).Scan(&event.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Deactivate is the soft delete: the event stops accepting attendance but
// its history stays queryable.
func (r *PostgresEventRepository) Deactivate(ctx context.Context, id string) (*models.Event, error) {
	query := `UPDATE events SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresEventRepository) IncrementAttendance(ctx context.Context, id string) error {
	query := `UPDATE events SET attendance_count = attendance_count + 1, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment attendance count: %w", err)
	}
	return nil
}

const selectEvent = `SELECT id, name, description, date, start_time, end_time, location, organizer, capacity, is_active, attendance_count, created_at, updated_at
	          FROM events`

func scanEventRow(row pgx.Row) (*models.Event, error) {
	var (
		event               models.Event
		location, organizer []byte
	)
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.Date,
		&event.StartTime,
		&event.EndTime,
		&location,
		&organizer,
		&event.Capacity,
		&event.IsActive,
		&event.AttendanceCount,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if location != nil {
		if err := json.Unmarshal(location, &event.Location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location: %w", err)
		}
	}
	if organizer != nil {
		if err := json.Unmarshal(organizer, &event.Organizer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal organizer: %w", err)
		}
	}
	return &event, nil
}
