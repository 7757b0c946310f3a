package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/geo"
	"github.com/resqlabs/resq/internal/models"
)

// MemoryStore keeps everything in maps behind one RWMutex. Conditional
// updates are atomic under the write lock, which gives the same
// compare-and-swap guarantee the SQL store gets from its WHERE clause.
type MemoryStore struct {
	mu       sync.RWMutex
	triage   map[uuid.UUID]models.TriageRequest
	sos      map[uuid.UUID]models.SOSSignal
	incident map[uuid.UUID]models.IncidentReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		triage:   map[uuid.UUID]models.TriageRequest{},
		sos:      map[uuid.UUID]models.SOSSignal{},
		incident: map[uuid.UUID]models.IncidentReport{},
	}
}

func copyTriage(t models.TriageRequest) models.TriageRequest {
	t.AssignedTo = append([]models.Assignment(nil), t.AssignedTo...)
	t.Updates = append([]models.UpdateNote(nil), t.Updates...)
	t.Location.Coordinates = append([]float64(nil), t.Location.Coordinates...)
	if t.ActualResponseTime != nil {
		v := *t.ActualResponseTime
		t.ActualResponseTime = &v
	}
	return t
}

func copySOS(s models.SOSSignal) models.SOSSignal {
	s.AcknowledgedBy = append([]models.Acknowledgement(nil), s.AcknowledgedBy...)
	s.Location.Coordinates = append([]float64(nil), s.Location.Coordinates...)
	if s.ResolvedBy != nil {
		v := *s.ResolvedBy
		s.ResolvedBy = &v
	}
	return s
}

func copyIncident(i models.IncidentReport) models.IncidentReport {
	i.Responders = append([]models.Assignment(nil), i.Responders...)
	i.Updates = append([]models.UpdateNote(nil), i.Updates...)
	i.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	return i
}

func (m *MemoryStore) CreateTriage(ctx context.Context, t models.TriageRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triage[t.ID] = copyTriage(t)
	return nil
}

func (m *MemoryStore) GetTriage(ctx context.Context, id uuid.UUID) (models.TriageRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.triage[id]
	if !ok {
		return models.TriageRequest{}, ErrNotFound
	}
	return copyTriage(t), nil
}

func (m *MemoryStore) UpdateTriage(ctx context.Context, t models.TriageRequest, expect models.TriageStatus) (models.TriageRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.triage[t.ID]
	if !ok {
		return models.TriageRequest{}, ErrNotFound
	}
	if cur.Status != expect {
		return models.TriageRequest{}, ErrConflict
	}
	t.UpdatedAt = time.Now().UTC()
	m.triage[t.ID] = copyTriage(t)
	return copyTriage(t), nil
}

func (m *MemoryStore) ListTriage(ctx context.Context, f TriageFilter) ([]models.TriageRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TriageRequest
	for _, t := range m.triage {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.MinScore > 0 && t.Score < f.MinScore {
			continue
		}
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.AssignedUserID != "" && !t.AssignedToUser(f.AssignedUserID) {
			continue
		}
		if f.ActiveOnly && t.Status.Terminal() {
			continue
		}
		if !f.CreatedSince.IsZero() && t.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		out = append(out, copyTriage(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), nil
}

func page(in []models.TriageRequest, offset, limit int) []models.TriageRequest {
	if offset < 0 {
		offset = 0
	}
	if offset > len(in) {
		offset = len(in)
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (m *MemoryStore) CreateSOS(ctx context.Context, s models.SOSSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sos[s.ID] = copySOS(s)
	return nil
}

func (m *MemoryStore) GetSOS(ctx context.Context, id uuid.UUID) (models.SOSSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sos[id]
	if !ok {
		return models.SOSSignal{}, ErrNotFound
	}
	return copySOS(s), nil
}

func (m *MemoryStore) UpdateSOS(ctx context.Context, s models.SOSSignal, expect models.SOSStatus) (models.SOSSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sos[s.ID]
	if !ok {
		return models.SOSSignal{}, ErrNotFound
	}
	if cur.Status != expect {
		return models.SOSSignal{}, ErrConflict
	}
	s.UpdatedAt = time.Now().UTC()
	m.sos[s.ID] = copySOS(s)
	return copySOS(s), nil
}

func (m *MemoryStore) ListSOS(ctx context.Context, f SOSFilter) ([]models.SOSSignal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SOSSignal
	for _, s := range m.sos {
		if !sosMatches(s, f) {
			continue
		}
		out = append(out, copySOS(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func sosMatches(s models.SOSSignal, f SOSFilter) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if len(f.Statuses) > 0 && !sosStatusIn(s.Status, f.Statuses) {
		return false
	}
	if f.Severity != "" && s.Severity != f.Severity {
		return false
	}
	if f.Sector != "" && s.Location.Sector != f.Sector {
		return false
	}
	if !f.CreatedSince.IsZero() && s.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	return true
}

func sosStatusIn(s models.SOSStatus, set []models.SOSStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *MemoryStore) NearbySOS(ctx context.Context, lng, lat, maxMeters float64, limit int, statuses []models.SOSStatus) ([]NearbySOS, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []NearbySOS
	for _, s := range m.sos {
		if len(statuses) > 0 && !sosStatusIn(s.Status, statuses) {
			continue
		}
		if !geo.ValidCoordinates(s.Location.Coordinates) {
			continue
		}
		d := geo.DistanceMeters(lng, lat, s.Location.Longitude(), s.Location.Latitude())
		if d > maxMeters {
			continue
		}
		out = append(out, NearbySOS{SOSSignal: copySOS(s), DistanceMeters: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateIncident(ctx context.Context, i models.IncidentReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incident[i.ID] = copyIncident(i)
	return nil
}

func (m *MemoryStore) GetIncident(ctx context.Context, id uuid.UUID) (models.IncidentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.incident[id]
	if !ok {
		return models.IncidentReport{}, ErrNotFound
	}
	return copyIncident(i), nil
}

func (m *MemoryStore) UpdateIncident(ctx context.Context, i models.IncidentReport, expect models.IncidentStatus) (models.IncidentReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.incident[i.ID]
	if !ok {
		return models.IncidentReport{}, ErrNotFound
	}
	if cur.Status != expect {
		return models.IncidentReport{}, ErrConflict
	}
	i.UpdatedAt = time.Now().UTC()
	m.incident[i.ID] = copyIncident(i)
	return copyIncident(i), nil
}

func (m *MemoryStore) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.IncidentReport
	for _, i := range m.incident {
		if f.Status != "" && i.Status != f.Status {
			continue
		}
		if len(f.Statuses) > 0 && !incidentStatusIn(i.Status, f.Statuses) {
			continue
		}
		if f.Severity != "" && i.Severity != f.Severity {
			continue
		}
		if f.Sector != "" && i.Location.Sector != f.Sector {
			continue
		}
		if !f.CreatedSince.IsZero() && i.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		out = append(out, copyIncident(i))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func incidentStatusIn(s models.IncidentStatus, set []models.IncidentStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
