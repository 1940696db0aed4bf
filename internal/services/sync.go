package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvkrishna/attendsync/internal/client"
	"github.com/nvkrishna/attendsync/internal/connectivity"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/store"
)

// SyncService reconciles locally queued and unsynced state with the remote
// service. A pass is triggered by an offline-to-online transition, a periodic
// tick while online, or an explicit ForceSync; overlapping triggers are
// dropped by the mutex guard, not queued.
type SyncService struct {
	store      *store.Store
	api        *client.Client
	conn       connectivity.Monitor
	metrics    *Metrics
	maxRetries int
	interval   time.Duration

	mu         sync.Mutex // held for the duration of a pass
	inProgress atomic.Bool
}

func NewSyncService(
	st *store.Store,
	api *client.Client,
	conn connectivity.Monitor,
	metrics *Metrics,
	maxRetries int,
	interval time.Duration,
) *SyncService {
	return &SyncService{
		store:      st,
		api:        api,
		conn:       conn,
		metrics:    metrics,
		maxRetries: maxRetries,
		interval:   interval,
	}
}

// Run drives the sync triggers until the context is cancelled: reconnect
// transitions from the connectivity monitor and the periodic tick.
func (s *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-s.conn.Changes():
			if online {
				log.Println("Connection restored, starting sync...")
				if err := s.SyncAll(ctx); err != nil {
					log.Printf("Sync after reconnect failed: %v", err)
				}
			} else {
				log.Println("Connection lost, sync paused")
			}
		case <-ticker.C:
			if s.conn.Online() {
				if err := s.SyncAll(ctx); err != nil {
					log.Printf("Periodic sync failed: %v", err)
				}
			}
		}
	}
}

// SyncAll runs one full sync pass: drain the queue in insertion order, then
// sweep attendance records that are unsynced without a live queue entry
// (possible after a crash between enqueue and delivery bookkeeping). A pass
// already in progress makes this call a no-op.
func (s *SyncService) SyncAll(ctx context.Context) error {
	if !s.conn.Online() {
		return nil
	}
	if !s.mu.TryLock() {
		// Dropped, not queued; the next trigger retries.
		return nil
	}
	defer s.mu.Unlock()

	s.inProgress.Store(true)
	defer s.inProgress.Store(false)

	s.metrics.RecordSyncStart()
	syncedCount := 0

	queue, err := s.store.GetSyncQueue(ctx)
	if err != nil {
		s.metrics.RecordSyncComplete(false, syncedCount)
		return fmt.Errorf("failed to load sync queue: %w", err)
	}

	for _, item := range queue {
		if err := s.processItem(ctx, item); err != nil {
			log.Printf("Sync error for item %d: %v", item.ID, err)
			if err := s.store.IncrementSyncAttempts(ctx, item.ID); err != nil {
				log.Printf("Failed to increment attempts for item %d: %v", item.ID, err)
				continue
			}
			if item.Attempts+1 >= s.maxRetries {
				log.Printf("Removing item %d after max retries", item.ID)
				if err := s.store.RemoveSyncQueueItem(ctx, item.ID); err != nil {
					log.Printf("Failed to remove exhausted item %d: %v", item.ID, err)
				}
			}
			continue
		}
		if err := s.store.RemoveSyncQueueItem(ctx, item.ID); err != nil {
			log.Printf("Failed to remove synced item %d: %v", item.ID, err)
			continue
		}
		syncedCount++
	}

	syncedCount += s.syncUnsyncedAttendance(ctx)

	if err := s.store.SetLastSyncTime(ctx, time.Now()); err != nil {
		log.Printf("Failed to persist last sync time: %v", err)
	}
	s.metrics.RecordSyncComplete(true, syncedCount)
	return nil
}

// ForceSync requests an immediate pass, subject to the same guard and
// connectivity precondition as any other trigger.
func (s *SyncService) ForceSync(ctx context.Context) error {
	return s.SyncAll(ctx)
}

func (s *SyncService) processItem(ctx context.Context, item *models.SyncQueueItem) error {
	switch {
	case item.Type == models.SyncItemTypeAttendance && item.Action == models.SyncActionCreate:
		var record models.AttendanceRecord
		if err := json.Unmarshal(item.Data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal attendance payload: %w", err)
		}
		if err := s.syncSingleAttendance(ctx, &record); err != nil {
			return err
		}
		return s.store.MarkAsSynced(ctx, record.LocalID)

	case item.Type == models.SyncItemTypeEvent && item.Action == models.SyncActionCreate:
		var event models.Event
		if err := json.Unmarshal(item.Data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
		_, err := s.api.PostEvent(ctx, &event)
		if errors.Is(err, client.ErrEventExists) {
			log.Printf("Event %s already exists on server", event.ID)
			return nil
		}
		return err

	default:
		// Unknown items are dropped so they cannot wedge the queue.
		log.Printf("Unknown sync item type %q action %q", item.Type, item.Action)
		return nil
	}
}

// syncSingleAttendance posts one record. A 409 means the server already holds
// a canonical record for the pair; that is success-with-duplicate, never a
// retryable failure.
func (s *SyncService) syncSingleAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	_, err := s.api.PostAttendance(ctx, record)
	if errors.Is(err, client.ErrDuplicateAttendance) {
		log.Printf("Duplicate attendance for record %d, marking as synced", record.LocalID)
		return nil
	}
	return err
}

func (s *SyncService) syncUnsyncedAttendance(ctx context.Context) int {
	syncedCount := 0

	unsynced, err := s.store.GetUnsynced(ctx)
	if err != nil {
		log.Printf("Error loading unsynced attendance: %v", err)
		return syncedCount
	}

	for _, record := range unsynced {
		if err := s.syncSingleAttendance(ctx, record); err != nil {
			log.Printf("Failed to sync attendance %d: %v", record.LocalID, err)
			continue
		}
		if err := s.store.MarkAsSynced(ctx, record.LocalID); err != nil {
			log.Printf("Failed to mark attendance %d synced: %v", record.LocalID, err)
			continue
		}
		syncedCount++
	}
	return syncedCount
}

// DownloadEvents refreshes the local event cache from the server, falling
// back to the cached copies when offline or on error.
func (s *SyncService) DownloadEvents(ctx context.Context) ([]*models.Event, error) {
	if !s.conn.Online() {
		return s.store.GetAllEvents(ctx)
	}

	list, err := s.api.ListEvents(ctx)
	if err != nil {
		log.Printf("Failed to download events: %v", err)
		return s.store.GetAllEvents(ctx)
	}

	for _, event := range list.Events {
		if err := s.store.SaveEvent(ctx, event); err != nil {
			return nil, err
		}
	}
	return list.Events, nil
}

// DownloadAttendance merges the server's view of a user's attendance with
// local records that have not reached the server yet. Server data takes
// precedence; unsynced local records fill the gaps.
func (s *SyncService) DownloadAttendance(ctx context.Context, userID string) ([]*models.AttendanceRecord, error) {
	if !s.conn.Online() {
		return s.store.GetAttendanceByUser(ctx, userID)
	}

	list, err := s.api.ListUserAttendance(ctx, userID, 0, 0)
	if err != nil {
		log.Printf("Failed to download attendance: %v", err)
		return s.store.GetAttendanceByUser(ctx, userID)
	}

	local, err := s.store.GetAttendanceByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := append([]*models.AttendanceRecord{}, list.Attendance...)
	seen := make(map[int64]bool, len(list.Attendance))
	for _, record := range list.Attendance {
		if record.LocalID != 0 {
			seen[record.LocalID] = true
		}
	}
	for _, record := range local {
		if !record.Synced && !seen[record.LocalID] {
			merged = append(merged, record)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	return merged, nil
}

// Status reports storage counts plus the engine's live state.
func (s *SyncService) Status(ctx context.Context) (*models.SyncStatus, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return nil, err
	}
	return &models.SyncStatus{
		StorageStats:   *stats,
		IsOnline:       s.conn.Online(),
		SyncInProgress: s.inProgress.Load(),
		LastSync:       lastSync,
	}, nil
}

// ClearSyncQueue drops every pending item without delivering it.
func (s *SyncService) ClearSyncQueue(ctx context.Context) error {
	queue, err := s.store.GetSyncQueue(ctx)
	if err != nil {
		return err
	}
	for _, item := range queue {
		if err := s.store.RemoveSyncQueueItem(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}
