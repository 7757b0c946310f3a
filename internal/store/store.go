package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional update lost its status check:
	// another writer changed the entity first. Callers may retry.
	ErrConflict = errors.New("concurrent update conflict")
)

// TriageFilter narrows triage listings. Zero values mean "any".
type TriageFilter struct {
	Status         models.TriageStatus
	Category       models.TriageCategory
	MinScore       int
	UserID         string
	AssignedUserID string
	// ActiveOnly excludes COMPLETED and CANCELLED requests.
	ActiveOnly   bool
	CreatedSince time.Time
	Limit        int
	Offset       int
}

// SOSFilter narrows SOS listings. Zero values mean "any".
type SOSFilter struct {
	Status       models.SOSStatus
	Statuses     []models.SOSStatus
	Severity     models.Severity
	Sector       string
	CreatedSince time.Time
	Limit        int
}

// IncidentFilter narrows incident listings. Zero values mean "any".
type IncidentFilter struct {
	Status       models.IncidentStatus
	Statuses     []models.IncidentStatus
	Severity     models.Severity
	Sector       string
	CreatedSince time.Time
	Limit        int
}

// NearbySOS is an SOS signal annotated with its distance from the
// query point, in meters.
type NearbySOS struct {
	models.SOSSignal
	DistanceMeters float64 `json:"distance"`
}

// TriageStore persists triage requests. Listings are always ordered by
// score descending then createdAt descending: that ordering is the
// dispatch-queue contract responders rely on.
type TriageStore interface {
	CreateTriage(ctx context.Context, t models.TriageRequest) error
	GetTriage(ctx context.Context, id uuid.UUID) (models.TriageRequest, error)
	// UpdateTriage persists the full entity conditional on the stored
	// status still matching expect. Returns ErrConflict on a lost race,
	// ErrNotFound for unknown ids.
	UpdateTriage(ctx context.Context, t models.TriageRequest, expect models.TriageStatus) (models.TriageRequest, error)
	ListTriage(ctx context.Context, f TriageFilter) ([]models.TriageRequest, error)
}

// SOSStore persists SOS signals and answers the nearby geo queries.
type SOSStore interface {
	CreateSOS(ctx context.Context, s models.SOSSignal) error
	GetSOS(ctx context.Context, id uuid.UUID) (models.SOSSignal, error)
	// UpdateSOS is conditional on status, like UpdateTriage.
	UpdateSOS(ctx context.Context, s models.SOSSignal, expect models.SOSStatus) (models.SOSSignal, error)
	// ListSOS orders by createdAt descending.
	ListSOS(ctx context.Context, f SOSFilter) ([]models.SOSSignal, error)
	// NearbySOS returns signals within maxMeters of (lng, lat), ordered
	// by distance ascending then createdAt descending. A nil statuses
	// slice matches every status.
	NearbySOS(ctx context.Context, lng, lat, maxMeters float64, limit int, statuses []models.SOSStatus) ([]NearbySOS, error)
}

// IncidentStore persists incident reports.
type IncidentStore interface {
	CreateIncident(ctx context.Context, i models.IncidentReport) error
	GetIncident(ctx context.Context, id uuid.UUID) (models.IncidentReport, error)
	UpdateIncident(ctx context.Context, i models.IncidentReport, expect models.IncidentStatus) (models.IncidentReport, error)
	// ListIncidents orders by createdAt descending.
	ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentReport, error)
}

// Store is everything the services need from persistence.
type Store interface {
	TriageStore
	SOSStore
	IncidentStore
	Ping(ctx context.Context) error
}
