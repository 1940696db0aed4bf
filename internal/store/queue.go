package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
)

// AddToSyncQueue appends a pending operation and returns its id.
// The item's timestamp is assigned here and attempts starts at zero.
func (s *Store) AddToSyncQueue(ctx context.Context, itemType, action string, data json.RawMessage) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := enqueueTx(ctx, tx, itemType, action, data)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit queue item: %w", err)
	}
	return id, nil
}

func enqueueTx(ctx context.Context, tx *sql.Tx, itemType, action string, data json.RawMessage) (int64, error) {
	query := `INSERT INTO sync_queue (type, action, data, timestamp, attempts) VALUES (?, ?, ?, ?, 0)`
	result, err := tx.ExecContext(ctx, query, itemType, action, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue item id: %w", err)
	}
	return id, nil
}

// GetSyncQueue returns all pending items in insertion order.
func (s *Store) GetSyncQueue(ctx context.Context) ([]*models.SyncQueueItem, error) {
	query := `SELECT id, type, action, data, timestamp, attempts FROM sync_queue ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var items []*models.SyncQueueItem
	for rows.Next() {
		var (
			item      models.SyncQueueItem
			data      string
			timestamp string
		)
		if err := rows.Scan(&item.ID, &item.Type, &item.Action, &data, &timestamp, &item.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Data = json.RawMessage(data)
		if item.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse queue timestamp: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue: %w", err)
	}
	return items, nil
}

// RemoveSyncQueueItem deletes an item; removing an absent id is a no-op.
func (s *Store) RemoveSyncQueueItem(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}
	return nil
}

// IncrementSyncAttempts bumps the retry counter after a failed delivery.
func (s *Store) IncrementSyncAttempts(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE sync_queue SET attempts = attempts + 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}
