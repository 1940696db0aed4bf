package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/qr"
	"github.com/nvkrishna/attendsync/internal/repositories"
)

type eventResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Event   *models.Event `json:"event"`
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if event.ID == "" || event.Name == "" || event.Date.IsZero() || event.StartTime.IsZero() || event.EndTime.IsZero() {
		writeError(w, http.StatusBadRequest, "Missing required fields: id, name, date, startTime, endTime")
		return
	}
	if !event.StartTime.Before(event.EndTime) {
		writeError(w, http.StatusBadRequest, "Start time must be before end time")
		return
	}

	if err := h.events.Create(r.Context(), &event); err != nil {
		if errors.Is(err, repositories.ErrEventExists) {
			writeError(w, http.StatusConflict, "Event with this ID already exists")
			return
		}
		log.Printf("Error creating event: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, eventResponse{
		Success: true,
		Message: "Event created successfully",
		Event:   &event,
	})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)

	var activeOnly *bool
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		activeOnly = &active
	}

	events, total, err := h.events.List(r.Context(), limit, offset, activeOnly)
	if err != nil {
		log.Printf("Error fetching events: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	writeJSON(w, http.StatusOK, models.EventList{
		Events:     events,
		TotalCount: total,
		HasMore:    offset+limit < total,
	})
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.lookupEvent(r.Context(), eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Printf("Error fetching event: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch event")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var update models.Event
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !update.StartTime.IsZero() && !update.EndTime.IsZero() && !update.StartTime.Before(update.EndTime) {
		writeError(w, http.StatusBadRequest, "Start time must be before end time")
		return
	}

	ctx := r.Context()
	event, err := h.events.GetByID(ctx, eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Printf("Error fetching event: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update event")
		return
	}

	applyEventUpdate(event, &update)

	if err := h.events.Update(ctx, event); err != nil {
		log.Printf("Error updating event: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update event")
		return
	}
	h.invalidateEvent(ctx, eventID)

	writeJSON(w, http.StatusOK, eventResponse{
		Success: true,
		Message: "Event updated successfully",
		Event:   event,
	})
}

// applyEventUpdate copies the updatable fields that were actually provided.
// ID, attendance count, and timestamps are never client-settable.
func applyEventUpdate(event, update *models.Event) {
	if update.Name != "" {
		event.Name = update.Name
	}
	if update.Description != "" {
		event.Description = update.Description
	}
	if !update.Date.IsZero() {
		event.Date = update.Date
	}
	if !update.StartTime.IsZero() {
		event.StartTime = update.StartTime
	}
	if !update.EndTime.IsZero() {
		event.EndTime = update.EndTime
	}
	if update.Location != nil {
		event.Location = update.Location
	}
	if update.Organizer != nil {
		event.Organizer = update.Organizer
	}
	if update.Capacity != nil {
		event.Capacity = update.Capacity
	}
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.events.Deactivate(r.Context(), eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err != nil {
		log.Printf("Error deleting event: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	h.invalidateEvent(r.Context(), eventID)

	writeJSON(w, http.StatusOK, eventResponse{
		Success: true,
		Message: "Event deactivated successfully",
		Event:   event,
	})
}

// eventQR regenerates the scannable payload for a live event. Every call
// stamps a fresh issuance time, restarting the expiry window.
func (h *Handler) eventQR(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.lookupEvent(r.Context(), eventID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !event.IsActive) {
		writeError(w, http.StatusNotFound, "Event not found or inactive")
		return
	}
	if err != nil {
		log.Printf("Error fetching event QR data: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch QR data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"qrData": qr.NewPayload(event, time.Now()),
		"event": map[string]any{
			"id":        event.ID,
			"name":      event.Name,
			"date":      event.Date,
			"startTime": event.StartTime,
			"endTime":   event.EndTime,
			"location":  event.Location,
		},
	})
}
