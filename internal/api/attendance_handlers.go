package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/repositories"
)

type attendanceResponse struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Attendance *models.AttendanceRecord `json:"attendance"`
}

func (h *Handler) createAttendance(w http.ResponseWriter, r *http.Request) {
	var record models.AttendanceRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if record.EventID == "" || record.UserID == "" || record.UserName == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: eventId, userId, userName")
		return
	}

	ctx := r.Context()

	// Pre-check keeps the common duplicate path cheap; the unique index is
	// still the real guard for concurrent writers.
	existing, err := h.attendance.GetByEventAndUser(ctx, record.EventID, record.UserID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to record attendance")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "Attendance already recorded for this event",
			"attendance": existing,
		})
		return
	}

	event, err := h.lookupEvent(ctx, record.EventID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to record attendance")
		return
	}
	if event == nil || !event.IsActive {
		writeError(w, http.StatusNotFound, "Event not found or inactive")
		return
	}
	if !event.HasCapacity() {
		writeError(w, http.StatusBadRequest, "Event has reached maximum capacity")
		return
	}

	if record.EventName == "" {
		record.EventName = event.Name
	}

	if err := h.attendance.Create(ctx, &record); err != nil {
		if errors.Is(err, repositories.ErrDuplicateAttendance) {
			writeError(w, http.StatusConflict, "Attendance already recorded for this event")
			return
		}
		log.Printf("Error creating attendance: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to record attendance")
		return
	}

	if err := h.events.IncrementAttendance(ctx, record.EventID); err != nil {
		log.Printf("Failed to increment attendance count for event %s: %v", record.EventID, err)
	}
	h.invalidateEvent(ctx, record.EventID)

	writeJSON(w, http.StatusCreated, attendanceResponse{
		Success:    true,
		Message:    "Attendance recorded successfully",
		Attendance: &record,
	})
}

type bulkAttendanceRequest struct {
	AttendanceRecords []*models.AttendanceRecord `json:"attendanceRecords"`
}

type bulkResult struct {
	LocalID    int64                    `json:"localId,omitempty"`
	Status     string                   `json:"status"`
	Attendance *models.AttendanceRecord `json:"attendance,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// bulkCreateAttendance lets a client flush a backlog in one request. Each
// record succeeds, duplicates, or fails independently.
func (h *Handler) bulkCreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req bulkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AttendanceRecords == nil {
		writeError(w, http.StatusBadRequest, "attendanceRecords must be an array")
		return
	}

	ctx := r.Context()
	results := make([]bulkResult, 0, len(req.AttendanceRecords))
	created, duplicates, failed := 0, 0, 0

	for _, record := range req.AttendanceRecords {
		existing, err := h.attendance.GetByEventAndUser(ctx, record.EventID, record.UserID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			results = append(results, bulkResult{LocalID: record.LocalID, Status: "error", Error: err.Error()})
			failed++
			continue
		}
		if existing != nil {
			results = append(results, bulkResult{LocalID: record.LocalID, Status: "duplicate", Attendance: existing})
			duplicates++
			continue
		}

		if err := h.attendance.Create(ctx, record); err != nil {
			if errors.Is(err, repositories.ErrDuplicateAttendance) {
				results = append(results, bulkResult{LocalID: record.LocalID, Status: "duplicate"})
				duplicates++
			} else {
				results = append(results, bulkResult{LocalID: record.LocalID, Status: "error", Error: err.Error()})
				failed++
			}
			continue
		}

		if err := h.events.IncrementAttendance(ctx, record.EventID); err != nil {
			log.Printf("Failed to increment attendance count for event %s: %v", record.EventID, err)
		}
		results = append(results, bulkResult{LocalID: record.LocalID, Status: "created", Attendance: record})
		created++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"processed":  len(req.AttendanceRecords),
		"created":    created,
		"duplicates": duplicates,
		"errors":     failed,
		"results":    results,
	})
}

func (h *Handler) listEventAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	limit, offset := pagination(r, 100)

	records, total, err := h.attendance.ListByEvent(r.Context(), eventID, limit, offset)
	if err != nil {
		log.Printf("Error fetching event attendance: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch event attendance")
		return
	}

	writeJSON(w, http.StatusOK, models.AttendanceList{
		Attendance: records,
		TotalCount: total,
		HasMore:    offset+limit < total,
	})
}

func (h *Handler) listUserAttendance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	limit, offset := pagination(r, 50)

	records, total, err := h.attendance.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error fetching user attendance: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch attendance records")
		return
	}

	writeJSON(w, http.StatusOK, models.AttendanceList{
		Attendance: records,
		TotalCount: total,
		HasMore:    offset+limit < total,
	})
}

func (h *Handler) userAttendanceStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	stats, err := h.attendance.StatsByUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching attendance stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch attendance statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// lookupEvent reads through the cache when one is configured. Cache errors
// are soft; the database is always the fallback.
func (h *Handler) lookupEvent(ctx context.Context, id string) (*models.Event, error) {
	if h.cache != nil {
		cached, err := h.cache.GetEvent(ctx, id)
		if err != nil {
			log.Printf("Event cache read failed for %s: %v", id, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	event, err := h.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetEvent(ctx, event); err != nil {
			log.Printf("Event cache write failed for %s: %v", id, err)
		}
	}
	return event, nil
}

func (h *Handler) invalidateEvent(ctx context.Context, id string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, id); err != nil {
		log.Printf("Event cache invalidation failed for %s: %v", id, err)
	}
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
