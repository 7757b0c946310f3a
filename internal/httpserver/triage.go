package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
	"github.com/resqlabs/resq/internal/triage"
)

type createTriageRequest struct {
	Type     models.TriageCategory `json:"type"`
	Location models.Location       `json:"location"`
	Need     string                `json:"need"`
	// nil means unspecified; the field-app omits it for a lone caller.
	AffectedCount *int   `json:"affectedCount"`
	Notes         string `json:"notes"`
}

func (s *Server) handleCreateTriage(w http.ResponseWriter, r *http.Request) {
	var req createTriageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	affected := 1
	if req.AffectedCount != nil {
		affected = *req.AffectedCount
	}
	p := principal(r)
	t, err := s.triage.Create(r.Context(), triage.CreateRequest{
		Category:      req.Type,
		Location:      req.Location,
		Need:          req.Need,
		AffectedCount: affected,
		Notes:         req.Notes,
		UserID:        p.UserID,
		UserName:      p.Name,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, t)
}

func (s *Server) handleListTriage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TriageFilter{
		Status:   models.TriageStatus(q.Get("status")),
		Category: models.TriageCategory(q.Get("type")),
		UserID:   q.Get("userId"),
	}
	if v, err := strconv.Atoi(q.Get("minScore")); err == nil && v > 0 {
		f.MinScore = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}
	list, err := s.triage.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list)
}

func (s *Server) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := s.triage.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, t)
}

type triageStatusRequest struct {
	Status models.TriageStatus `json:"status"`
	Note   string              `json:"note"`
}

func (s *Server) handleTriageStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req triageStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := principal(r)
	t, err := s.triage.UpdateStatus(r.Context(), id, req.Status, req.Note, p.UserID, p.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, t)
}

type assignTriageRequest struct {
	ResponderID   string `json:"responderId"`
	ResponderName string `json:"responderName"`
	Role          string `json:"role"`
}

func (s *Server) handleAssignTriage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req assignTriageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Self-assignment is the common path for field responders.
	if req.ResponderID == "" {
		p := principal(r)
		req.ResponderID = p.UserID
		req.ResponderName = p.Name
	}
	t, err := s.triage.Assign(r.Context(), id, req.ResponderID, req.ResponderName, req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, t)
}

func (s *Server) handleHighPriority(w http.ResponseWriter, r *http.Request) {
	list, err := s.triage.HighPriority(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list)
}

func (s *Server) handleAssignedTriage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	list, err := s.triage.AssignedTo(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list)
}
