// Package httpserver is the REST and websocket edge of the dispatch
// core. Handlers stay thin: decode, call the service, map the error,
// wrap the result in the {success, data|error} envelope field clients
// expect.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/auth"
	"github.com/resqlabs/resq/internal/fanout"
	"github.com/resqlabs/resq/internal/incident"
	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/sos"
	"github.com/resqlabs/resq/internal/stats"
	"github.com/resqlabs/resq/internal/store"
	"github.com/resqlabs/resq/internal/triage"
)

type Server struct {
	triage    *triage.Service
	sos       *sos.Service
	incidents *incident.Service
	stats     *stats.Service
	store     store.Store
	hub       *fanout.Hub
	verifier  *auth.Verifier
}

func New(tr *triage.Service, so *sos.Service, inc *incident.Service, st *stats.Service, db store.Store, hub *fanout.Hub, v *auth.Verifier) *Server {
	return &Server{
		triage:    tr,
		sos:       so,
		incidents: inc,
		stats:     st,
		store:     db,
		hub:       hub,
		verifier:  v,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Route("/api", func(r chi.Router) {
		if s.verifier != nil {
			r.Use(s.verifier.Middleware)
		}

		r.Route("/sos", func(r chi.Router) {
			r.Post("/", s.handleBroadcastSOS)
			r.Get("/", s.handleListSOS)
			r.Get("/nearby/{lng}/{lat}", s.handleNearbySOS)
			r.Get("/{id}", s.handleGetSOS)
			r.Patch("/{id}/acknowledge", s.handleAcknowledgeSOS)
			r.Patch("/{id}/status", s.handleSOSStatus)
		})

		r.Route("/triage", func(r chi.Router) {
			r.Post("/", s.handleCreateTriage)
			r.Get("/", s.handleListTriage)
			r.Get("/priority/high", s.handleHighPriority)
			r.Get("/assigned/{userId}", s.handleAssignedTriage)
			r.Get("/{id}", s.handleGetTriage)
			r.Patch("/{id}/status", s.handleTriageStatus)
			r.Post("/{id}/assign", s.handleAssignTriage)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Post("/", s.handleReportIncident)
			r.Get("/", s.handleListIncidents)
			r.Get("/{id}", s.handleGetIncident)
			r.Patch("/{id}/status", s.handleIncidentStatus)
			r.Post("/{id}/respond", s.handleRespondIncident)
		})

		r.Get("/stats/dashboard", s.handleDashboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.store.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.stats.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, d)
}

// principal pulls the caller identity, falling back to the demo user
// when the route group runs without the auth middleware.
func principal(r *http.Request) auth.Principal {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p
	}
	return auth.DemoPrincipal
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: false, Error: msg})
}

// respondServiceError maps domain errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case models.IsInvalidTransition(err):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "concurrent update, retry")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
