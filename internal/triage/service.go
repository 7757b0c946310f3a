// Package triage owns the lifecycle of triage requests: intake with
// priority scoring, responder assignment, and forward-only status
// progression through to completion.
package triage

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
	"github.com/resqlabs/resq/internal/priority"
	"github.com/resqlabs/resq/internal/store"
)

// Archiver receives completed requests for long-term storage. Optional;
// failures are logged, never surfaced.
type Archiver interface {
	ArchiveTriage(ctx context.Context, t models.TriageRequest) error
}

type Service struct {
	store    store.TriageStore
	pub      fanout.Publisher
	archiver Archiver
	locks    *keylock.Striped
}

func New(st store.TriageStore, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{
		store: st,
		pub:   pub,
		locks: keylock.New(),
	}
}

// WithArchiver attaches an archiver for completed requests.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// CreateRequest is the intake payload for a new triage request.
type CreateRequest struct {
	Category      models.TriageCategory
	Location      models.Location
	Need          string
	AffectedCount int
	Notes         string
	UserID        string
	UserName      string
}

// Create validates the intake, scores it, and persists the new request
// in CREATED state. The score, tier, and response-time estimate are
// fixed at this point and never recomputed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (models.TriageRequest, error) {
	if !req.Category.Valid() {
		return models.TriageRequest{}, models.Validationf(
			"type must be one of: %s", joinCategories())
	}
	if strings.TrimSpace(req.Need) == "" {
		return models.TriageRequest{}, models.Validationf("need is required")
	}
	if req.AffectedCount < 0 {
		return models.TriageRequest{}, models.Validationf("affectedCount must not be negative")
	}

	distance := req.Location.DistanceKm
	score, tier := priority.Score(req.Category, distance, req.AffectedCount)

	now := time.Now().UTC()
	t := models.TriageRequest{
		ID:                    uuid.New(),
		RequestID:             newRequestID(),
		Category:              req.Category,
		UserID:                req.UserID,
		UserName:              req.UserName,
		Location:              req.Location,
		Need:                  req.Need,
		AffectedCount:         req.AffectedCount,
		Status:                models.TriageCreated,
		Score:                 score,
		Priority:              tier,
		AssignedTo:            []models.Assignment{},
		EstimatedResponseTime: priority.EstimateResponseMinutes(distance),
		Notes:                 req.Notes,
		Updates:               []models.UpdateNote{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateTriage(ctx, t); err != nil {
		return models.TriageRequest{}, fmt.Errorf("create triage: %w", err)
	}

	s.emit(ctx, t.ID.String(), models.Event{
		Name: models.EventNewTriage,
		Payload: models.NewTriagePayload{
			TriageID:  t.ID,
			RequestID: t.RequestID,
			Type:      t.Category,
			Score:     t.Score,
			Location:  t.Location,
		},
	})
	return t, nil
}

// Assign attaches a responder. Idempotent per responder: re-assigning
// an already-assigned responder returns the unchanged request and emits
// nothing. The first assignment moves a CREATED request to ASSIGNED.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, responderID, responderName, role string) (models.TriageRequest, error) {
	if responderID == "" {
		return models.TriageRequest{}, models.Validationf("responderId is required")
	}
	if role == "" {
		role = "Responder"
	}
	defer s.locks.Lock(id.String())()

	t, err := s.store.GetTriage(ctx, id)
	if err != nil {
		return models.TriageRequest{}, err
	}
	if t.AssignedToUser(responderID) {
		return t, nil
	}

	now := time.Now().UTC()
	prev := t.Status
	t.AssignedTo = append(t.AssignedTo, models.Assignment{
		UserID:     responderID,
		UserName:   responderName,
		Role:       role,
		AssignedAt: now,
	})
	if t.Status == models.TriageCreated {
		t.Status = models.TriageAssigned
	}
	t.Updates = append(t.Updates, models.UpdateNote{
		Message:   fmt.Sprintf("%s assigned as %s", responderName, role),
		UpdatedBy: responderID,
		Timestamp: now,
	})

	updated, err := s.store.UpdateTriage(ctx, t, prev)
	if err != nil {
		return models.TriageRequest{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventTriageAssigned,
		Payload: models.TriageAssignedPayload{
			TriageID:  updated.ID,
			RequestID: updated.RequestID,
			Responder: responderName,
			Role:      role,
		},
	})
	return updated, nil
}

// UpdateStatus moves the request through its state machine. The first
// transition into COMPLETED records actualResponseTime; later repeats
// of COMPLETED leave it untouched.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next models.TriageStatus, note, actorID, actorName string) (models.TriageRequest, error) {
	if !next.Valid() {
		return models.TriageRequest{}, models.Validationf("invalid status %q", string(next))
	}
	defer s.locks.Lock(id.String())()

	t, err := s.store.GetTriage(ctx, id)
	if err != nil {
		return models.TriageRequest{}, err
	}
	prev := t.Status
	if !prev.CanTransitionTo(next) {
		return models.TriageRequest{}, &models.InvalidTransitionError{
			Entity: "triage " + t.RequestID,
			From:   string(prev),
			To:     string(next),
		}
	}

	now := time.Now().UTC()
	t.Status = next
	if note != "" {
		t.Updates = append(t.Updates, models.UpdateNote{
			Message:   note,
			UpdatedBy: actorID,
			Timestamp: now,
		})
	}
	if next == models.TriageCompleted && prev != models.TriageCompleted {
		minutes := int(now.Sub(t.CreatedAt).Round(time.Minute) / time.Minute)
		t.ActualResponseTime = &minutes
	}

	updated, err := s.store.UpdateTriage(ctx, t, prev)
	if err != nil {
		return models.TriageRequest{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventTriageStatusUpdated,
		Payload: models.TriageStatusPayload{
			TriageID:  updated.ID,
			RequestID: updated.RequestID,
			Status:    updated.Status,
			UpdatedBy: actorName,
		},
	})
	if next == models.TriageCompleted && prev != models.TriageCompleted {
		s.archive(ctx, updated)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.TriageRequest, error) {
	return s.store.GetTriage(ctx, id)
}

// List returns requests ordered by score descending then createdAt
// descending: the dispatch queue responders pull from.
func (s *Service) List(ctx context.Context, f store.TriageFilter) ([]models.TriageRequest, error) {
	return s.store.ListTriage(ctx, f)
}

// HighPriority returns the open high-score queue shown on the
// dispatcher's board.
func (s *Service) HighPriority(ctx context.Context) ([]models.TriageRequest, error) {
	return s.store.ListTriage(ctx, store.TriageFilter{
		MinScore:   75,
		ActiveOnly: true,
		Limit:      20,
	})
}

// AssignedTo returns the open requests a responder is working.
func (s *Service) AssignedTo(ctx context.Context, userID string) ([]models.TriageRequest, error) {
	return s.store.ListTriage(ctx, store.TriageFilter{
		AssignedUserID: userID,
		ActiveOnly:     true,
	})
}

func (s *Service) emit(ctx context.Context, key string, ev models.Event) {
	if err := s.pub.Publish(ctx, key, ev); err != nil {
		log.Printf("[triage] fan-out emit %s failed: %v", ev.Name, err)
	}
}

func (s *Service) archive(ctx context.Context, t models.TriageRequest) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveTriage(ctx, t); err != nil {
		log.Printf("[triage] archive %s failed: %v", t.RequestID, err)
	}
}

// newRequestID builds the human-readable id dispatchers read over the
// radio. The hex tail comes from a fresh uuid so ids stay unique
// without a counter in the store.
func newRequestID() string {
	u := uuid.New()
	return "REQ-" + strings.ToUpper(u.String()[:6])
}

func joinCategories() string {
	parts := make([]string, len(models.TriageCategories))
	for i, c := range models.TriageCategories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
