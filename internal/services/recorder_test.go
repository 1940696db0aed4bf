package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvkrishna/attendsync/internal/client"
	"github.com/nvkrishna/attendsync/internal/connectivity"
	"github.com/nvkrishna/attendsync/internal/qr"
	"github.com/nvkrishna/attendsync/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err, "Failed to open test store")
	t.Cleanup(func() { st.Close() })
	return st
}

func newRecorder(t *testing.T, st *store.Store, baseURL string, online bool) (*AttendanceService, *Metrics) {
	t.Helper()
	metrics := NewMetrics()
	api := client.New(baseURL, 2*time.Second)
	conn := connectivity.NewManual(online)
	rec := NewAttendanceService(st, api, conn, NoLocation{}, metrics, time.Second)
	return rec, metrics
}

func scanPayload(eventID string) *qr.Payload {
	return &qr.Payload{
		EventID:   eventID,
		EventName: "Orientation",
		Timestamp: time.Now().UTC(),
		Type:      qr.PayloadType,
	}
}

// TestRecordAttendance_OfflineDurability: with no network at all, recording
// still succeeds and the record is waiting in the unsynced set.
func TestRecordAttendance_OfflineDurability(t *testing.T) {
	st := newTestStore(t)
	rec, metrics := newRecorder(t, st, "http://127.0.0.1:1", false)
	ctx := context.Background()

	result, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Attendance saved offline", result.Message)
	assert.Greater(t, result.LocalID, int64(0))

	unsynced, err := st.GetUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "E1", unsynced[0].EventID)
	assert.False(t, unsynced[0].Synced)

	assert.Equal(t, 1, metrics.Snapshot().OfflineOperations)
}

// TestRecordAttendance_OnlineImmediateDelivery: a reachable server gets the
// record right away and the local copy flips to synced.
func TestRecordAttendance_OnlineImmediateDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/attendance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"message":"Attendance recorded successfully","attendance":{"id":"abc"}}`))
	}))
	defer server.Close()

	st := newTestStore(t)
	rec, metrics := newRecorder(t, st, server.URL, true)
	ctx := context.Background()

	result, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Attendance recorded successfully", result.Message)

	unsynced, err := st.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced, "record should be marked synced after immediate delivery")
	assert.Equal(t, 0, metrics.Snapshot().OfflineOperations)
}

// TestRecordAttendance_DeliveryFailureIsNotAnError: a failing server never
// fails the scan; the record stays queued for the sync engine.
func TestRecordAttendance_DeliveryFailureIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	st := newTestStore(t)
	rec, metrics := newRecorder(t, st, server.URL, true)
	ctx := context.Background()

	result, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	assert.True(t, result.Success)

	unsynced, err := st.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Len(t, unsynced, 1, "record should remain unsynced")
	assert.Equal(t, 1, metrics.Snapshot().OfflineOperations)
}

// TestRecordAttendance_ServerDuplicateMarksSynced: a 409 on immediate
// delivery means the server already holds the record.
func TestRecordAttendance_ServerDuplicateMarksSynced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Attendance already recorded for this event"}`))
	}))
	defer server.Close()

	st := newTestStore(t)
	rec, _ := newRecorder(t, st, server.URL, true)
	ctx := context.Background()

	result, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	assert.True(t, result.Success)

	unsynced, err := st.GetUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

// TestValidateScan_DuplicateRejectedBeforeRecording: the second scan of the
// same (event, user) pair fails the pre-check; no second record is created.
func TestValidateScan_DuplicateRejectedBeforeRecording(t *testing.T) {
	st := newTestStore(t)
	rec, _ := newRecorder(t, st, "http://127.0.0.1:1", false)
	ctx := context.Background()

	payload := scanPayload("E1")
	require.NoError(t, rec.ValidateScan(ctx, payload, "U1"))

	_, err := rec.RecordAttendance(ctx, payload, "U1", "User One")
	require.NoError(t, err)

	err = rec.ValidateScan(ctx, payload, "U1")
	assert.ErrorIs(t, err, ErrDuplicateScan)

	all, err := st.GetAllAttendance(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no second record should exist")

	// A different user may still scan the same event
	assert.NoError(t, rec.ValidateScan(ctx, payload, "U2"))
}

func TestValidateScan_ExpiredPayload(t *testing.T) {
	st := newTestStore(t)
	rec, _ := newRecorder(t, st, "http://127.0.0.1:1", false)

	payload := scanPayload("E1")
	payload.Timestamp = time.Now().Add(-25 * time.Hour)
	assert.ErrorIs(t, rec.ValidateScan(context.Background(), payload, "U1"), qr.ErrExpired)
}

func TestGetAttendanceStats(t *testing.T) {
	st := newTestStore(t)
	rec, _ := newRecorder(t, st, "http://127.0.0.1:1", false)
	ctx := context.Background()

	_, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	_, err = rec.RecordAttendance(ctx, scanPayload("E2"), "U1", "User One")
	require.NoError(t, err)

	stats, err := rec.GetAttendanceStats(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Today)
	assert.Equal(t, 2, stats.ThisWeek)
	assert.Equal(t, 2, stats.Unsynced)
}

func TestGetAttendanceHistory_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	rec, _ := newRecorder(t, st, "http://127.0.0.1:1", false)
	ctx := context.Background()

	_, err := rec.RecordAttendance(ctx, scanPayload("E1"), "U1", "User One")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = rec.RecordAttendance(ctx, scanPayload("E2"), "U1", "User One")
	require.NoError(t, err)

	history, err := rec.GetAttendanceHistory(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "E2", history[0].EventID)
	assert.Equal(t, "E1", history[1].EventID)
}
