package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/sos"
	"github.com/resqlabs/resq/internal/store"
)

type broadcastSOSRequest struct {
	Location    models.Location `json:"location"`
	Severity    models.Severity `json:"severity"`
	Description string          `json:"description"`
}

func (s *Server) handleBroadcastSOS(w http.ResponseWriter, r *http.Request) {
	var req broadcastSOSRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := principal(r)
	sig, err := s.sos.Broadcast(r.Context(), sos.BroadcastRequest{
		UserID:      p.UserID,
		UserName:    p.Name,
		Location:    req.Location,
		Severity:    req.Severity,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, sig)
}

func (s *Server) handleListSOS(w http.ResponseWriter, r *http.Request) {
	f := store.SOSFilter{
		Status:   models.SOSStatus(r.URL.Query().Get("status")),
		Severity: models.Severity(r.URL.Query().Get("severity")),
		Sector:   r.URL.Query().Get("sector"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}
	signals, err := s.sos.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, signals)
}

func (s *Server) handleGetSOS(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	sig, err := s.sos.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, sig)
}

func (s *Server) handleAcknowledgeSOS(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p := principal(r)
	sig, err := s.sos.Acknowledge(r.Context(), id, p.UserID, p.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, sig)
}

type sosStatusRequest struct {
	Status models.SOSStatus `json:"status"`
}

func (s *Server) handleSOSStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req sosStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := principal(r)
	sig, err := s.sos.UpdateStatus(r.Context(), id, req.Status, p.UserID, p.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, sig)
}

func (s *Server) handleNearbySOS(w http.ResponseWriter, r *http.Request) {
	lng, lngErr := strconv.ParseFloat(chi.URLParam(r, "lng"), 64)
	lat, latErr := strconv.ParseFloat(chi.URLParam(r, "lat"), 64)
	if lngErr != nil || latErr != nil {
		respondError(w, http.StatusBadRequest, "lng and lat must be numbers")
		return
	}
	var maxMeters float64
	if v, err := strconv.ParseFloat(r.URL.Query().Get("maxDistance"), 64); err == nil {
		maxMeters = v
	}
	var limit int
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = v
	}
	hits, err := s.sos.Nearby(r.Context(), lng, lat, maxMeters, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, hits)
}
