package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/qr"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 5*time.Second)
}

func jsonHandler(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func TestPostAttendance_DecodesRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /attendance", func(w http.ResponseWriter, r *http.Request) {
		var record models.AttendanceRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "E1", record.EventID)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		record.ID = "srv-1"
		record.Synced = true
		jsonHandler(http.StatusCreated, map[string]any{
			"success":    true,
			"message":    "Attendance recorded successfully",
			"attendance": record,
		})(w, r)
	})
	c := newTestClient(t, mux)

	saved, err := c.PostAttendance(context.Background(), &models.AttendanceRecord{
		EventID: "E1", UserID: "U1", UserName: "User One",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", saved.ID)
	assert.True(t, saved.Synced)
}

func TestPostAttendance_Conflict(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusConflict, map[string]string{
		"error": "Attendance already recorded for this event",
	}))

	_, err := c.PostAttendance(context.Background(), &models.AttendanceRecord{EventID: "E1", UserID: "U1"})
	assert.ErrorIs(t, err, ErrDuplicateAttendance)
}

func TestPostAttendance_EventNotFound(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusNotFound, map[string]string{
		"error": "Event not found or inactive",
	}))

	_, err := c.PostAttendance(context.Background(), &models.AttendanceRecord{EventID: "ghost", UserID: "U1"})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestPostEvent_Conflict(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusConflict, map[string]string{
		"error": "Event with this ID already exists",
	}))

	_, err := c.PostEvent(context.Background(), &models.Event{ID: "E1"})
	assert.ErrorIs(t, err, ErrEventExists)
}

func TestServerError_APIError(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusInternalServerError, map[string]string{
		"error": "Failed to record attendance",
	}))

	_, err := c.PostAttendance(context.Background(), &models.AttendanceRecord{EventID: "E1", UserID: "U1"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Failed to record attendance", apiErr.Message)
}

func TestListEvents(t *testing.T) {
	c := newTestClient(t, jsonHandler(http.StatusOK, models.EventList{
		Events:     []*models.Event{{ID: "E1", Name: "Orientation", IsActive: true}},
		TotalCount: 1,
	}))

	list, err := c.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Events, 1)
	assert.Equal(t, "E1", list.Events[0].ID)
}

func TestEventQR(t *testing.T) {
	issued := time.Now().UTC().Truncate(time.Second)
	c := newTestClient(t, jsonHandler(http.StatusOK, map[string]any{
		"qrData": qr.Payload{
			EventID:   "E1",
			EventName: "Orientation",
			Timestamp: issued,
			Type:      qr.PayloadType,
		},
		"event": map[string]any{"id": "E1", "name": "Orientation"},
	}))

	resp, err := c.EventQR(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, "E1", resp.QRData.EventID)
	assert.NoError(t, resp.QRData.Validate(issued.Add(time.Minute)))
}

func TestListUserAttendance_SendsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /attendance/user/U1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		jsonHandler(http.StatusOK, models.AttendanceList{TotalCount: 0})(w, r)
	})
	c := newTestClient(t, mux)

	_, err := c.ListUserAttendance(context.Background(), "U1", 25, 50)
	require.NoError(t, err)
}

func TestRequestTimeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.PostAttendance(context.Background(), &models.AttendanceRecord{EventID: "E1", UserID: "U1"})
	assert.Error(t, err)
}
