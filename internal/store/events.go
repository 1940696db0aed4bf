package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
)

// SaveEvent upserts an event into the local cache. Each successful download
// overwrites the cached copy wholesale.
func (s *Store) SaveEvent(ctx context.Context, event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	query := `INSERT INTO events (id, name, date, data) VALUES (?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET name = excluded.name, date = excluded.date, data = excluded.data`
	_, err = s.db.ExecContext(ctx, query, event.ID, event.Name, event.Date.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetAllEvents returns the cached events ordered by date.
func (s *Store) GetAllEvents(ctx context.Context) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM events ORDER BY date ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var event models.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// GetEvent returns a cached event, or nil if it is not cached.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM events WHERE id = ?", eventID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	var event models.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}
