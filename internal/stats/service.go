// Package stats computes the dashboard aggregates. Everything here is
// read-only and recomputed per request; aggregation happens in Go over
// store listings rather than in SQL so the numbers come out identical
// on the memory and Postgres backends.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

// goldenHour is the response window the resolved-within metric grades
// against.
const goldenHour = time.Hour

// trendWindow bounds the 24h counters.
const trendWindow = 24 * time.Hour

// Dashboard is the aggregate snapshot the operations board renders.
type Dashboard struct {
	ActiveSOS          int     `json:"activeSOS"`
	LiveReports        int     `json:"liveReports"`
	CriticalIncidents  int     `json:"criticalIncidents"`
	HighPriorityTriage int     `json:"highPriorityTriage"`
	ActiveResponders   int     `json:"activeResponders"`
	GoldenHourPercent  float64 `json:"goldenHourPercent"`
	Trends             Trends  `json:"trends24h"`
	GeneratedAt        string  `json:"generatedAt"`
}

// Trends counts activity inside the trailing 24h window.
type Trends struct {
	NewSOS         int `json:"newSOS"`
	NewTriage      int `json:"newTriage"`
	NewIncidents   int `json:"newIncidents"`
	ResolvedSOS    int `json:"resolvedSOS"`
	CompletedWork  int `json:"completedTriage"`
	ClosedIncident int `json:"closedIncidents"`
}

type Service struct {
	store store.Store
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// Dashboard assembles the full snapshot. Each listing error aborts the
// snapshot; a half-filled board is worse than a failed refresh.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	now := time.Now().UTC()
	since := now.Add(-trendWindow)

	signals, err := s.store.ListSOS(ctx, store.SOSFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	triage, err := s.store.ListTriage(ctx, store.TriageFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	incidents, err := s.store.ListIncidents(ctx, store.IncidentFilter{})
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		GeneratedAt: now.Format(time.RFC3339),
	}
	responders := map[string]struct{}{}

	var graded, withinHour int
	for _, sig := range signals {
		switch sig.Status {
		case models.SOSCreated, models.SOSBroadcasting, models.SOSAcknowledged, models.SOSResponded:
			d.ActiveSOS++
		}
		for _, ack := range sig.AcknowledgedBy {
			responders[ack.UserID] = struct{}{}
		}
		if sig.Status == models.SOSResolved || sig.Status == models.SOSResponded {
			graded++
			if ref := resolutionTime(sig); ref.Sub(sig.CreatedAt) <= goldenHour {
				withinHour++
			}
		}
		if sig.CreatedAt.After(since) {
			d.Trends.NewSOS++
		}
		if sig.Status == models.SOSResolved && sig.UpdatedAt.After(since) {
			d.Trends.ResolvedSOS++
		}
	}
	if graded > 0 {
		d.GoldenHourPercent = math.Round(float64(withinHour)/float64(graded)*1000) / 10
	}

	for _, t := range triage {
		if !t.Status.Terminal() {
			for _, a := range t.AssignedTo {
				responders[a.UserID] = struct{}{}
			}
			if t.Score >= 85 {
				d.HighPriorityTriage++
			}
		}
		if t.CreatedAt.After(since) {
			d.Trends.NewTriage++
		}
		if t.Status == models.TriageCompleted && t.UpdatedAt.After(since) {
			d.Trends.CompletedWork++
		}
	}

	for _, inc := range incidents {
		switch inc.Status {
		case models.IncidentOpen, models.IncidentInProgress:
			d.LiveReports++
			if inc.Severity == models.SeverityCritical {
				d.CriticalIncidents++
			}
		}
		if inc.CreatedAt.After(since) {
			d.Trends.NewIncidents++
		}
		if inc.Status == models.IncidentClosed && inc.UpdatedAt.After(since) {
			d.Trends.ClosedIncident++
		}
	}

	d.ActiveResponders = len(responders)
	return d, nil
}

// resolutionTime picks the moment the signal counts as handled: the
// recorded resolution when present, otherwise the last update.
func resolutionTime(sig models.SOSSignal) time.Time {
	if sig.ResolvedBy != nil {
		return sig.ResolvedBy.Timestamp
	}
	return sig.UpdatedAt
}
