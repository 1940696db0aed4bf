// Package api is the remote service's HTTP surface: the REST routes the
// scanning clients and organizer tooling talk to.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nvkrishna/attendsync/internal/repositories"
)

// Handler holds the repositories the routes operate on. The cache is
// optional; a nil cache means every event lookup goes to Postgres.
type Handler struct {
	attendance repositories.AttendanceRepository
	events     repositories.EventRepository
	cache      repositories.EventCache
}

func NewHandler(
	attendance repositories.AttendanceRepository,
	events repositories.EventRepository,
	cache repositories.EventCache,
) *Handler {
	return &Handler{
		attendance: attendance,
		events:     events,
		cache:      cache,
	}
}

// Router builds the chi router with all API routes mounted under /api.
func (h *Handler) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", h.createAttendance)
			r.Post("/bulk", h.bulkCreateAttendance)
			r.Get("/event/{eventId}", h.listEventAttendance)
			r.Get("/user/{userId}", h.listUserAttendance)
			r.Get("/user/{userId}/stats", h.userAttendanceStats)
		})
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.createEvent)
			r.Get("/", h.listEvents)
			r.Get("/{eventId}", h.getEvent)
			r.Put("/{eventId}", h.updateEvent)
			r.Delete("/{eventId}", h.deleteEvent)
			r.Get("/{eventId}/qr", h.eventQR)
		})
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
