// Package store is the client's local durable storage: attendance records,
// a read-mostly event cache, and the outbound sync queue, all in one SQLite
// database that survives process restarts. The recorder and sync engine only
// ever touch persisted state through this package.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/nvkrishna/attendsync/internal/database"
	"github.com/nvkrishna/attendsync/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const lastSyncKey = "lastSyncTime"

// Store provides durable, indexed storage for the scanning client.
type Store struct {
	db *sql.DB
}

// Open creates or opens the local database at the given path and applies
// the schema. Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ClearAllData wipes all three collections and the meta table in one
// transaction. Used for reset and testing.
func (s *Store) ClearAllData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"attendance", "events", "sync_queue", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

// Stats counts each collection plus the unsynced attendance backlog.
func (s *Store) Stats(ctx context.Context) (*models.StorageStats, error) {
	stats := &models.StorageStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM attendance", &stats.TotalAttendance},
		{"SELECT COUNT(*) FROM events", &stats.TotalEvents},
		{"SELECT COUNT(*) FROM sync_queue", &stats.PendingSync},
		{"SELECT COUNT(*) FROM attendance WHERE synced = 0", &stats.UnsyncedAttendance},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	return stats, nil
}

// SetLastSyncTime durably records when the last successful sync pass ended.
func (s *Store) SetLastSyncTime(ctx context.Context, t time.Time) error {
	query := `INSERT INTO meta (key, value) VALUES (?, ?)
	          ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, lastSyncKey, t.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to set last sync time: %w", err)
	}
	return nil
}

// LastSyncTime returns the recorded last sync time, or nil if never synced.
func (s *Store) LastSyncTime(ctx context.Context) (*time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", lastSyncKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync time: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last sync time: %w", err)
	}
	return &t, nil
}
