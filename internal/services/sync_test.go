package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvkrishna/attendsync/internal/client"
	"github.com/nvkrishna/attendsync/internal/connectivity"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/store"
)

// fakeRemote is an in-memory stand-in for the remote service. It enforces
// the (eventID, userID) unique constraint and can be forced to fail.
type fakeRemote struct {
	mu       sync.Mutex
	posts    int
	failWith int // non-zero forces this status on POST /attendance
	records  map[string]models.AttendanceRecord
	events   map[string]bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records: make(map[string]models.AttendanceRecord),
		events:  make(map[string]bool),
	}
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /attendance", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.posts++

		if f.failWith != 0 {
			w.WriteHeader(f.failWith)
			return
		}

		var record models.AttendanceRecord
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key := record.EventID + "|" + record.UserID
		if _, exists := f.records[key]; exists {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"Attendance already recorded for this event"}`))
			return
		}
		f.records[key] = record

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "attendance": record})
	})
	mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var event models.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.events[event.ID] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.events[event.ID] = true
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	})
	return mux
}

func (f *fakeRemote) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func (f *fakeRemote) setFailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = status
}

func (f *fakeRemote) hasRecord(eventID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[eventID+"|"+userID]
	return ok
}

type syncHarness struct {
	store  *store.Store
	remote *fakeRemote
	conn   *connectivity.Manual
	sync   *SyncService
	rec    *AttendanceService
}

func newSyncHarness(t *testing.T, online bool) *syncHarness {
	t.Helper()
	remote := newFakeRemote()
	server := httptest.NewServer(remote.handler())
	t.Cleanup(server.Close)

	st := newTestStore(t)
	api := client.New(server.URL, 2*time.Second)
	conn := connectivity.NewManual(online)
	metrics := NewMetrics()

	return &syncHarness{
		store:  st,
		remote: remote,
		conn:   conn,
		sync:   NewSyncService(st, api, conn, metrics, 3, 30*time.Second),
		rec:    NewAttendanceService(st, api, conn, NoLocation{}, metrics, time.Second),
	}
}

func saveOffline(t *testing.T, st *store.Store, eventID, userID string) int64 {
	t.Helper()
	id, err := st.SaveAttendance(context.Background(), &models.AttendanceRecord{
		EventID:     eventID,
		EventName:   "Orientation",
		UserID:      userID,
		UserName:    "User " + userID,
		QRTimestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

// TestSyncAll_DrainsQueue: a queued record reaches the server, leaves the
// queue, and flips to synced.
func TestSyncAll_DrainsQueue(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")

	require.NoError(t, h.sync.SyncAll(ctx))

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	unsynced, err := h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	assert.True(t, h.remote.hasRecord("E1", "U1"))
}

// TestSyncAll_Idempotent: a second pass with nothing new sends nothing and
// changes nothing.
func TestSyncAll_Idempotent(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")

	require.NoError(t, h.sync.SyncAll(ctx))
	postsAfterFirst := h.remote.postCount()

	require.NoError(t, h.sync.SyncAll(ctx))
	assert.Equal(t, postsAfterFirst, h.remote.postCount(), "second pass should send nothing")

	stats, err := h.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingSync)
	assert.Equal(t, 0, stats.UnsyncedAttendance)
}

// TestSyncAll_RetryBoundTermination: an always-failing item survives exactly
// two failed passes and is dropped on the third.
func TestSyncAll_RetryBoundTermination(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")
	h.remote.setFailWith(http.StatusInternalServerError)

	for pass := 1; pass <= 2; pass++ {
		require.NoError(t, h.sync.SyncAll(ctx))
		queue, err := h.store.GetSyncQueue(ctx)
		require.NoError(t, err)
		require.Len(t, queue, 1, "item should survive pass %d", pass)
		assert.Equal(t, pass, queue[0].Attempts)
	}

	require.NoError(t, h.sync.SyncAll(ctx))
	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue, "item should be dropped after the third failed attempt")

	// The record itself is still unsynced; only the queue entry is gone.
	unsynced, err := h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Len(t, unsynced, 1)
}

// TestSyncAll_DuplicateIsSuccess: a 409 drains the item and marks the
// record synced instead of burning a retry.
func TestSyncAll_DuplicateIsSuccess(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	h.remote.records["E1|U1"] = models.AttendanceRecord{EventID: "E1", UserID: "U1"}
	saveOffline(t, h.store, "E1", "U1")

	require.NoError(t, h.sync.SyncAll(ctx))

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	unsynced, err := h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestSyncAll_OfflineIsNoop(t *testing.T) {
	h := newSyncHarness(t, false)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")

	require.NoError(t, h.sync.SyncAll(ctx))
	assert.Equal(t, 0, h.remote.postCount())

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

// TestSyncAll_UnsyncedSweep: a record that is unsynced with no queue entry
// (crash between enqueue bookkeeping) is still delivered.
func TestSyncAll_UnsyncedSweep(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")
	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	require.NoError(t, h.store.RemoveSyncQueueItem(ctx, queue[0].ID))

	require.NoError(t, h.sync.SyncAll(ctx))

	unsynced, err := h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
	assert.True(t, h.remote.hasRecord("E1", "U1"))
}

// TestScenario_OfflineScanThenReconnect walks the full offline-first path:
// scan while offline, reconnect, sync, verify the server holds the record.
func TestScenario_OfflineScanThenReconnect(t *testing.T) {
	h := newSyncHarness(t, false)
	ctx := context.Background()

	payload := scanPayload("E1")
	require.NoError(t, h.rec.ValidateScan(ctx, payload, "U1"))
	result, err := h.rec.RecordAttendance(ctx, payload, "U1", "User One")
	require.NoError(t, err)
	assert.Equal(t, "Attendance saved offline", result.Message)

	unsynced, err := h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)

	h.conn.SetOnline(true)
	require.NoError(t, h.sync.SyncAll(ctx))

	unsynced, err = h.store.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
	assert.True(t, h.remote.hasRecord("E1", "U1"))

	status, err := h.sync.Status(ctx)
	require.NoError(t, err)
	assert.NotNil(t, status.LastSync)
	assert.True(t, status.IsOnline)
	assert.False(t, status.SyncInProgress)
}

func TestSyncAll_EventQueueItem(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	event := models.Event{ID: "E1", Name: "Orientation", Date: time.Now().UTC()}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	_, err = h.store.AddToSyncQueue(ctx, models.SyncItemTypeEvent, models.SyncActionCreate, data)
	require.NoError(t, err)

	require.NoError(t, h.sync.SyncAll(ctx))

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.True(t, h.remote.events["E1"])

	// Replaying the same event item elsewhere yields 409, still a success.
	_, err = h.store.AddToSyncQueue(ctx, models.SyncItemTypeEvent, models.SyncActionCreate, data)
	require.NoError(t, err)
	require.NoError(t, h.sync.SyncAll(ctx))
	queue, err = h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestSyncAll_UnknownItemDropped(t *testing.T) {
	h := newSyncHarness(t, true)
	ctx := context.Background()

	_, err := h.store.AddToSyncQueue(ctx, "mystery", "create", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, h.sync.SyncAll(ctx))

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue, "unknown items must not wedge the queue")
}

func TestDownloadEvents_OfflineFallsBackToCache(t *testing.T) {
	h := newSyncHarness(t, false)
	ctx := context.Background()

	cached := &models.Event{ID: "E1", Name: "Orientation", Date: time.Now().UTC()}
	require.NoError(t, h.store.SaveEvent(ctx, cached))

	events, err := h.sync.DownloadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "E1", events[0].ID)
	assert.Equal(t, 0, h.remote.postCount())
}

func TestClearSyncQueue(t *testing.T) {
	h := newSyncHarness(t, false)
	ctx := context.Background()

	saveOffline(t, h.store, "E1", "U1")
	saveOffline(t, h.store, "E2", "U1")

	require.NoError(t, h.sync.ClearSyncQueue(ctx))

	queue, err := h.store.GetSyncQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
