package httpserver

import (
	"net/http"
	"strconv"

	"github.com/resqlabs/resq/internal/incident"
	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

type reportIncidentRequest struct {
	Type          string          `json:"type"`
	Location      models.Location `json:"location"`
	Description   string          `json:"description"`
	Severity      models.Severity `json:"severity"`
	AffectedCount int             `json:"affectedCount"`
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	var req reportIncidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := principal(r)
	inc, err := s.incidents.Report(r.Context(), incident.ReportRequest{
		UserID:        p.UserID,
		UserName:      p.Name,
		Type:          req.Type,
		Location:      req.Location,
		Description:   req.Description,
		Severity:      req.Severity,
		AffectedCount: req.AffectedCount,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, inc)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.IncidentFilter{
		Status:   models.IncidentStatus(q.Get("status")),
		Severity: models.Severity(q.Get("severity")),
		Sector:   q.Get("sector"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	list, err := s.incidents.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, list)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	inc, err := s.incidents.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, inc)
}

type incidentStatusRequest struct {
	Status models.IncidentStatus `json:"status"`
	Note   string                `json:"note"`
}

func (s *Server) handleIncidentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req incidentStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := principal(r)
	inc, err := s.incidents.UpdateStatus(r.Context(), id, req.Status, req.Note, p.UserID, p.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, inc)
}

func (s *Server) handleRespondIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p := principal(r)
	inc, err := s.incidents.Respond(r.Context(), id, p.UserID, p.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, inc)
}
