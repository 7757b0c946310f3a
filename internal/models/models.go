package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is a GeoJSON-style point with optional human labels.
// Coordinates are [longitude, latitude].
type Location struct {
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	// DistanceKm is the reporter's distance from the nearest responder,
	// as supplied at intake. May be 0 when unknown.
	DistanceKm float64 `json:"distance,omitempty"`
}

// Longitude returns the first coordinate, or 0 if absent.
func (l Location) Longitude() float64 {
	if len(l.Coordinates) > 0 {
		return l.Coordinates[0]
	}
	return 0
}

// Latitude returns the second coordinate, or 0 if absent.
func (l Location) Latitude() float64 {
	if len(l.Coordinates) > 1 {
		return l.Coordinates[1]
	}
	return 0
}

// Assignment records one responder attached to a triage request or incident.
type Assignment struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Role       string    `json:"role,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Acknowledgement records one responder acknowledging an SOS signal.
type Acknowledgement struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// Resolution records who resolved an SOS signal. Set exactly once.
type Resolution struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateNote is an audit entry appended as an entity changes hands.
type UpdateNote struct {
	Message   string    `json:"message"`
	UpdatedBy string    `json:"updatedBy"`
	Timestamp time.Time `json:"timestamp"`
}

// TriageRequest is a prioritized request for help. Score and tier are
// computed once at creation and never recomputed.
type TriageRequest struct {
	ID                    uuid.UUID      `json:"id"`
	RequestID             string         `json:"requestId"`
	Category              TriageCategory `json:"type"`
	UserID                string         `json:"userId"`
	UserName              string         `json:"userName"`
	Location              Location       `json:"location"`
	Need                  string         `json:"need"`
	AffectedCount         int            `json:"affectedCount"`
	Status                TriageStatus   `json:"status"`
	Score                 int            `json:"score"`
	Priority              int            `json:"priority"`
	AssignedTo            []Assignment   `json:"assignedTo"`
	EstimatedResponseTime int            `json:"estimatedResponseTime"`
	ActualResponseTime    *int           `json:"actualResponseTime,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	Updates               []UpdateNote   `json:"updates"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// SOSSignal is an emergency broadcast from a person in the field.
type SOSSignal struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Location    Location  `json:"location"`
	Status      SOSStatus `json:"status"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description,omitempty"`
	// RespondersNearby is a snapshot taken at broadcast time, not a
	// live count. It is derived from records near the signal, not from
	// tracked responder positions.
	RespondersNearby  int               `json:"respondersNearby"`
	AcknowledgedBy    []Acknowledgement `json:"acknowledgedBy"`
	ResolvedBy        *Resolution       `json:"resolvedBy,omitempty"`
	BroadcastRadiusKm float64           `json:"broadcastRadius"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// IncidentReport is a field report of damage or hazard, feeding the
// live dashboard rather than the dispatch queue.
type IncidentReport struct {
	ID            uuid.UUID      `json:"id"`
	ReportID      string         `json:"reportId"`
	UserID        string         `json:"userId"`
	UserName      string         `json:"userName"`
	Type          string         `json:"type"`
	Location      Location       `json:"location"`
	Description   string         `json:"description"`
	Severity      Severity       `json:"severity"`
	Status        IncidentStatus `json:"status"`
	AffectedCount int            `json:"affectedCount"`
	Responders    []Assignment   `json:"responders"`
	Updates       []UpdateNote   `json:"updates"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// AssignedToUser reports whether the given responder already appears in
// the assignment list.
func (t TriageRequest) AssignedToUser(userID string) bool {
	for _, a := range t.AssignedTo {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// AcknowledgedByUser reports whether the given responder has already
// acknowledged the signal.
func (s SOSSignal) AcknowledgedByUser(userID string) bool {
	for _, a := range s.AcknowledgedBy {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// HasResponder reports whether the given responder already joined the
// incident.
func (i IncidentReport) HasResponder(userID string) bool {
	for _, r := range i.Responders {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
