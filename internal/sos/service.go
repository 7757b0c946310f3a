// Package sos owns the lifecycle of emergency broadcasts: creation
// with a nearby snapshot, responder acknowledgement, and resolution.
package sos

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/fanout"
	"github.com/resqlabs/resq/internal/geo"
	"github.com/resqlabs/resq/internal/keylock"
	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

const (
	// defaultBroadcastRadiusKm is stored on the signal and drives which
	// sector feeds surface it.
	defaultBroadcastRadiusKm = 5.0

	// discoveryRadiusMeters bounds the broadcast-time nearby snapshot.
	discoveryRadiusMeters = 10000
	discoveryLimit        = 50

	// nearbyDefaultMeters and nearbyDefaultLimit apply when a nearby
	// query omits its parameters.
	nearbyDefaultMeters = 5000
	nearbyDefaultLimit  = 20
)

// Archiver receives resolved signals for long-term storage. Optional.
type Archiver interface {
	ArchiveSOS(ctx context.Context, s models.SOSSignal) error
}

type Service struct {
	store    store.SOSStore
	pub      fanout.Publisher
	archiver Archiver
	locks    *keylock.Striped
}

func New(st store.SOSStore, pub fanout.Publisher) *Service {
	if pub == nil {
		pub = fanout.Nop{}
	}
	return &Service{
		store: st,
		pub:   pub,
		locks: keylock.New(),
	}
}

// WithArchiver attaches an archiver for resolved signals.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// BroadcastRequest is the intake payload for a new SOS.
type BroadcastRequest struct {
	UserID      string
	UserName    string
	Location    models.Location
	Severity    models.Severity
	Description string
}

// Broadcast creates the signal in BROADCASTING state, snapshots how
// many records sit within the discovery radius, and emits the global
// broadcast plus a sector-scoped alert when a sector label is present.
//
// The nearby snapshot counts SOS records near the signal. Tracked
// responder positions do not exist in this system, so "responders
// nearby" has always meant "activity nearby"; see DESIGN.md.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (models.SOSSignal, error) {
	if !geo.ValidCoordinates(req.Location.Coordinates) {
		return models.SOSSignal{}, models.Validationf("location coordinates [lng, lat] are required")
	}
	if req.Severity == "" {
		req.Severity = models.SeverityHigh
	}
	if !req.Severity.Valid() {
		return models.SOSSignal{}, models.Validationf("invalid severity %q", string(req.Severity))
	}

	now := time.Now().UTC()
	sig := models.SOSSignal{
		ID:                uuid.New(),
		UserID:            req.UserID,
		UserName:          req.UserName,
		Location:          req.Location,
		Status:            models.SOSBroadcasting,
		Severity:          req.Severity,
		Description:       req.Description,
		AcknowledgedBy:    []models.Acknowledgement{},
		BroadcastRadiusKm: defaultBroadcastRadiusKm,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateSOS(ctx, sig); err != nil {
		return models.SOSSignal{}, fmt.Errorf("create sos: %w", err)
	}

	// Geo query failure must not undo the committed signal; the
	// snapshot just stays at zero.
	nearby, err := s.store.NearbySOS(ctx,
		sig.Location.Longitude(), sig.Location.Latitude(),
		discoveryRadiusMeters, discoveryLimit, nil)
	if err != nil {
		log.Printf("[sos] nearby snapshot for %s failed: %v", sig.ID, err)
	} else if count := countOthers(nearby, sig.ID); count > 0 {
		sig.RespondersNearby = count
		if updated, err := s.store.UpdateSOS(ctx, sig, models.SOSBroadcasting); err != nil {
			log.Printf("[sos] store nearby snapshot for %s failed: %v", sig.ID, err)
		} else {
			sig = updated
		}
	}

	s.emit(ctx, sig.ID.String(), models.Event{
		Name: models.EventSOSBroadcast,
		Payload: models.SOSBroadcastPayload{
			SOSID:            sig.ID,
			UserName:         sig.UserName,
			Location:         sig.Location,
			Severity:         sig.Severity,
			RespondersNearby: sig.RespondersNearby,
			Timestamp:        sig.CreatedAt,
		},
	})
	if sector := sig.Location.Sector; sector != "" {
		s.emitSector(ctx, sector, sig.ID.String(), models.Event{
			Name: models.EventNewSOS,
			Payload: models.NewSOSPayload{
				SOSID:    sig.ID,
				Message:  fmt.Sprintf("New %s SOS from %s", sig.Severity, sig.UserName),
				Location: sig.Location,
			},
		})
	}
	return sig, nil
}

// Acknowledge records a responder acknowledging the signal. Idempotent
// per responder: a repeat acknowledgement returns the unchanged signal
// and emits nothing. The first acknowledgement promotes an open signal
// to ACKNOWLEDGED; later ones never demote a further-along status.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, responderID, responderName string) (models.SOSSignal, error) {
	if responderID == "" {
		return models.SOSSignal{}, models.Validationf("responderId is required")
	}
	defer s.locks.Lock(id.String())()

	sig, err := s.store.GetSOS(ctx, id)
	if err != nil {
		return models.SOSSignal{}, err
	}
	if sig.AcknowledgedByUser(responderID) {
		return sig, nil
	}
	if sig.Status.Terminal() {
		return models.SOSSignal{}, &models.InvalidTransitionError{
			Entity: "sos " + id.String(),
			From:   string(sig.Status),
			To:     string(models.SOSAcknowledged),
		}
	}

	now := time.Now().UTC()
	prev := sig.Status
	sig.AcknowledgedBy = append(sig.AcknowledgedBy, models.Acknowledgement{
		UserID:    responderID,
		UserName:  responderName,
		Timestamp: now,
	})
	if sig.Status.Open() {
		sig.Status = models.SOSAcknowledged
	}

	updated, err := s.store.UpdateSOS(ctx, sig, prev)
	if err != nil {
		return models.SOSSignal{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventSOSAcknowledged,
		Payload: models.SOSAcknowledgedPayload{
			SOSID:     updated.ID,
			Responder: responderName,
			Timestamp: now,
		},
	})
	return updated, nil
}

// UpdateStatus moves the signal through its state machine. The first
// transition into RESOLVED records who resolved it; resolvedBy is never
// overwritten afterwards.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next models.SOSStatus, actorID, actorName string) (models.SOSSignal, error) {
	if !next.Valid() {
		return models.SOSSignal{}, models.Validationf("invalid status %q", string(next))
	}
	defer s.locks.Lock(id.String())()

	sig, err := s.store.GetSOS(ctx, id)
	if err != nil {
		return models.SOSSignal{}, err
	}
	prev := sig.Status
	if !prev.CanTransitionTo(next) {
		return models.SOSSignal{}, &models.InvalidTransitionError{
			Entity: "sos " + id.String(),
			From:   string(prev),
			To:     string(next),
		}
	}

	now := time.Now().UTC()
	sig.Status = next
	if next == models.SOSResolved && sig.ResolvedBy == nil {
		sig.ResolvedBy = &models.Resolution{
			UserID:    actorID,
			UserName:  actorName,
			Timestamp: now,
		}
	}

	updated, err := s.store.UpdateSOS(ctx, sig, prev)
	if err != nil {
		return models.SOSSignal{}, err
	}

	s.emit(ctx, id.String(), models.Event{
		Name: models.EventSOSStatusUpdated,
		Payload: models.SOSStatusPayload{
			SOSID:     updated.ID,
			Status:    updated.Status,
			UpdatedBy: actorName,
			Timestamp: now,
		},
	})
	if next == models.SOSResolved && prev != models.SOSResolved {
		s.archive(ctx, updated)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.SOSSignal, error) {
	return s.store.GetSOS(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.SOSFilter) ([]models.SOSSignal, error) {
	return s.store.ListSOS(ctx, f)
}

// Nearby returns still-active signals around a point, closest first.
// Only BROADCASTING and ACKNOWLEDGED signals are discoverable.
func (s *Service) Nearby(ctx context.Context, lng, lat, maxMeters float64, limit int) ([]store.NearbySOS, error) {
	if !geo.ValidCoordinates([]float64{lng, lat}) {
		return nil, models.Validationf("lng and lat must be valid coordinates")
	}
	if maxMeters <= 0 {
		maxMeters = nearbyDefaultMeters
	}
	if limit <= 0 {
		limit = nearbyDefaultLimit
	}
	return s.store.NearbySOS(ctx, lng, lat, maxMeters, limit, []models.SOSStatus{
		models.SOSBroadcasting,
		models.SOSAcknowledged,
	})
}

// countOthers counts nearby hits excluding the signal itself, which the
// discovery query sees because it runs after the create commits.
func countOthers(nearby []store.NearbySOS, self uuid.UUID) int {
	n := 0
	for _, h := range nearby {
		if h.ID != self {
			n++
		}
	}
	return n
}

func (s *Service) emit(ctx context.Context, key string, ev models.Event) {
	if err := s.pub.Publish(ctx, key, ev); err != nil {
		log.Printf("[sos] fan-out emit %s failed: %v", ev.Name, err)
	}
}

func (s *Service) emitSector(ctx context.Context, sector, key string, ev models.Event) {
	if err := s.pub.PublishSector(ctx, sector, key, ev); err != nil {
		log.Printf("[sos] sector emit %s failed: %v", ev.Name, err)
	}
}

func (s *Service) archive(ctx context.Context, sig models.SOSSignal) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveSOS(ctx, sig); err != nil {
		log.Printf("[sos] archive %s failed: %v", sig.ID, err)
	}
}
