package models

import (
	"time"

	"github.com/google/uuid"
)

// Event names emitted to the dispatch fan-out. Clients of the old
// socket layer key on these strings, so they are part of the contract.
const (
	EventSOSBroadcast     = "sos-broadcast"
	EventNewSOS           = "new-sos"
	EventSOSAcknowledged  = "sos-acknowledged"
	EventSOSStatusUpdated = "sos-status-updated"

	EventNewTriage           = "new-triage"
	EventTriageAssigned      = "triage-assigned"
	EventTriageStatusUpdated = "triage-status-updated"

	EventNewIncident     = "new-incident"
	EventIncidentUpdated = "incident-updated"
)

// Event is one fan-out emission. Payload must be JSON-marshalable.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type SOSBroadcastPayload struct {
	SOSID            uuid.UUID `json:"sosId"`
	UserName         string    `json:"userName"`
	Location         Location  `json:"location"`
	Severity         Severity  `json:"severity"`
	RespondersNearby int       `json:"respondersNearby"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewSOSPayload goes to the sector-scoped channel only.
type NewSOSPayload struct {
	SOSID    uuid.UUID `json:"sosId"`
	Message  string    `json:"message"`
	Location Location  `json:"location"`
}

type SOSAcknowledgedPayload struct {
	SOSID     uuid.UUID `json:"sosId"`
	Responder string    `json:"responder"`
	Timestamp time.Time `json:"timestamp"`
}

type SOSStatusPayload struct {
	SOSID     uuid.UUID `json:"sosId"`
	Status    SOSStatus `json:"status"`
	UpdatedBy string    `json:"updatedBy"`
	Timestamp time.Time `json:"timestamp"`
}

type NewTriagePayload struct {
	TriageID  uuid.UUID      `json:"triageId"`
	RequestID string         `json:"requestId"`
	Type      TriageCategory `json:"type"`
	Score     int            `json:"score"`
	Location  Location       `json:"location"`
}

type TriageAssignedPayload struct {
	TriageID  uuid.UUID `json:"triageId"`
	RequestID string    `json:"requestId"`
	Responder string    `json:"responder"`
	Role      string    `json:"role"`
}

type TriageStatusPayload struct {
	TriageID  uuid.UUID    `json:"triageId"`
	RequestID string       `json:"requestId"`
	Status    TriageStatus `json:"status"`
	UpdatedBy string       `json:"updatedBy"`
}

type NewIncidentPayload struct {
	IncidentID uuid.UUID `json:"incidentId"`
	ReportID   string    `json:"reportId"`
	Type       string    `json:"type"`
	Severity   Severity  `json:"severity"`
	Location   Location  `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
}

type IncidentUpdatedPayload struct {
	IncidentID uuid.UUID      `json:"incidentId"`
	ReportID   string         `json:"reportId"`
	Status     IncidentStatus `json:"status"`
	UpdatedBy  string         `json:"updatedBy"`
}
