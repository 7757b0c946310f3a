// Package incident manages field reports of damage and hazards. These
// feed the live dashboard and situational map rather than the dispatch
// queue, so the lifecycle is simpler than triage: Open, In Progress,
// Resolved, Closed, forward only.
package incident

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/fanout"
	"github.com/resqlabs/resq/internal/keylock"
	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

type Service struct {
	store store.IncidentStore
	pub   fanout.Publisher
	locks *keylock.Striped
}

func New(st store.IncidentStore, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{
		store: st,
		pub:   pub,
		locks: keylock.New(),
	}
}

// ReportRequest is the intake payload for a new incident report.
type ReportRequest struct {
	UserID        string
	UserName      string
	Type          string
	Location      models.Location
	Description   string
	Severity      models.Severity
	AffectedCount int
}

// Report creates the incident in Open state and announces it.
func (s *Service) Report(ctx context.Context, req ReportRequest) (models.IncidentReport, error) {
	if strings.TrimSpace(req.Type) == "" {
		return models.IncidentReport{}, models.Validationf("type is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return models.IncidentReport{}, models.Validationf("description is required")
	}
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}
	if !req.Severity.Valid() {
		return models.IncidentReport{}, models.Validationf("invalid severity %q", string(req.Severity))
	}

	now := time.Now().UTC()
	inc := models.IncidentReport{
		ID:            uuid.New(),
		ReportID:      newReportID(),
		UserID:        req.UserID,
		UserName:      req.UserName,
		Type:          req.Type,
		Location:      req.Location,
		Description:   req.Description,
		Severity:      req.Severity,
		Status:        models.IncidentOpen,
		AffectedCount: req.AffectedCount,
		Responders:    []models.Assignment{},
		Updates:       []models.UpdateNote{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateIncident(ctx, inc); err != nil {
		return models.IncidentReport{}, fmt.Errorf("create incident: %w", err)
	}

	s.emit(ctx, inc.ID.String(), models.Event{
		Name: models.EventNewIncident,
		Payload: models.NewIncidentPayload{
			IncidentID: inc.ID,
			ReportID:   inc.ReportID,
			Type:       inc.Type,
			Severity:   inc.Severity,
			Location:   inc.Location,
			Timestamp:  inc.CreatedAt,
		},
	})
	return inc, nil
}

// Respond registers a responder against the incident. Idempotent per
// responder. The first responder moves an Open incident to In Progress.
func (s *Service) Respond(ctx context.Context, id uuid.UUID, responderID, responderName string) (models.IncidentReport, error) {
	if responderID == "" {
		return models.IncidentReport{}, models.Validationf("responderId is required")
	}
	defer s.locks.Lock(id.String())()

	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return models.IncidentReport{}, err
	}
	if inc.HasResponder(responderID) {
		return inc, nil
	}
	if inc.Status.Terminal() {
		return models.IncidentReport{}, &models.InvalidTransitionError{
			Entity: "incident " + inc.ReportID,
			From:   string(inc.Status),
			To:     string(models.IncidentInProgress),
		}
	}

	now := time.Now().UTC()
	prev := inc.Status
	inc.Responders = append(inc.Responders, models.Assignment{
		UserID:     responderID,
		UserName:   responderName,
		Role:       "Responder",
		AssignedAt: now,
	})
	if inc.Status == models.IncidentOpen {
		inc.Status = models.IncidentInProgress
	}
	inc.Updates = append(inc.Updates, models.UpdateNote{
		Message:   fmt.Sprintf("%s is responding", responderName),
		UpdatedBy: responderID,
		Timestamp: now,
	})

	updated, err := s.store.UpdateIncident(ctx, inc, prev)
	if err != nil {
		return models.IncidentReport{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventIncidentUpdated,
		Payload: models.IncidentUpdatedPayload{
			IncidentID: updated.ID,
			ReportID:   updated.ReportID,
			Status:     updated.Status,
			UpdatedBy:  responderName,
		},
	})
	return updated, nil
}

// UpdateStatus moves the incident through its state machine.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next models.IncidentStatus, note, actorID, actorName string) (models.IncidentReport, error) {
	if !next.Valid() {
		return models.IncidentReport{}, models.Validationf("invalid status %q", string(next))
	}
	defer s.locks.Lock(id.String())()

	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return models.IncidentReport{}, err
	}
	prev := inc.Status
	if !prev.CanTransitionTo(next) {
		return models.IncidentReport{}, &models.InvalidTransitionError{
			Entity: "incident " + inc.ReportID,
			From:   string(prev),
			To:     string(next),
		}
	}

	inc.Status = next
	if note != "" {
		inc.Updates = append(inc.Updates, models.UpdateNote{
			Message:   note,
			UpdatedBy: actorID,
			Timestamp: time.Now().UTC(),
		})
	}

	updated, err := s.store.UpdateIncident(ctx, inc, prev)
	if err != nil {
		return models.IncidentReport{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventIncidentUpdated,
		Payload: models.IncidentUpdatedPayload{
			IncidentID: updated.ID,
			ReportID:   updated.ReportID,
			Status:     updated.Status,
			UpdatedBy:  actorName,
		},
	})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.IncidentReport, error) {
	return s.store.GetIncident(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.IncidentFilter) ([]models.IncidentReport, error) {
	return s.store.ListIncidents(ctx, f)
}

func (s *Service) emit(ctx context.Context, key string, ev models.Event) {
	if err := s.pub.Publish(ctx, key, ev); err != nil {
		log.Printf("[incident] fan-out emit %s failed: %v", ev.Name, err)
	}
}

// newReportID mirrors the triage request id shape with an RPT prefix.
func newReportID() string {
	u := uuid.New()
	return "RPT-" + strings.ToUpper(u.String()[:6])
}
