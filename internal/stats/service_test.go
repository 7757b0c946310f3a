package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

func seedSOS(t *testing.T, st *store.MemoryStore, status models.SOSStatus, created time.Time, resolvedAfter time.Duration, ackedBy ...string) models.SOSSignal {
	t.Helper()
	sig := models.SOSSignal{
		ID:        uuid.New(),
		UserID:    "user-1",
		Status:    models.SOSBroadcasting,
		Severity:  models.SeverityHigh,
		Location:  models.Location{Coordinates: []float64{77.2, 28.6}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, id := range ackedBy {
		sig.AcknowledgedBy = append(sig.AcknowledgedBy, models.Acknowledgement{
			UserID: id, UserName: id, Timestamp: created,
		})
	}
	require.NoError(t, st.CreateSOS(context.Background(), sig))
	if status != models.SOSBroadcasting {
		sig.Status = status
		if status == models.SOSResolved {
			sig.ResolvedBy = &models.Resolution{
				UserID:    "resolver",
				Timestamp: created.Add(resolvedAfter),
			}
		}
		var err error
		sig, err = st.UpdateSOS(context.Background(), sig, models.SOSBroadcasting)
		require.NoError(t, err)
	}
	return sig
}

func seedTriage(t *testing.T, st *store.MemoryStore, status models.TriageStatus, score int, assignee string) {
	t.Helper()
	now := time.Now().UTC()
	tr := models.TriageRequest{
		ID:        uuid.New(),
		RequestID: "REQ-TEST01",
		Category:  models.CategoryRescue,
		Status:    models.TriageCreated,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if assignee != "" {
		tr.AssignedTo = []models.Assignment{{UserID: assignee, UserName: assignee}}
	}
	require.NoError(t, st.CreateTriage(context.Background(), tr))
	if status != models.TriageCreated {
		tr.Status = status
		_, err := st.UpdateTriage(context.Background(), tr, models.TriageCreated)
		require.NoError(t, err)
	}
}

func seedIncident(t *testing.T, st *store.MemoryStore, status models.IncidentStatus, severity models.Severity) {
	t.Helper()
	now := time.Now().UTC()
	inc := models.IncidentReport{
		ID:        uuid.New(),
		ReportID:  "RPT-TEST01",
		Type:      "Fire",
		Severity:  severity,
		Status:    models.IncidentOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateIncident(context.Background(), inc))
	if status != models.IncidentOpen {
		inc.Status = status
		_, err := st.UpdateIncident(context.Background(), inc, models.IncidentOpen)
		require.NoError(t, err)
	}
}

func TestDashboardCounters(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now().UTC()

	// Two graded signals: one resolved in 30 min, one in 3 h.
	seedSOS(t, st, models.SOSResolved, now.Add(-2*time.Hour), 30*time.Minute, "resp-1")
	seedSOS(t, st, models.SOSResolved, now.Add(-4*time.Hour), 3*time.Hour, "resp-2")
	// Still active.
	seedSOS(t, st, models.SOSAcknowledged, now, 0, "resp-1")
	seedSOS(t, st, models.SOSBroadcasting, now, 0)

	seedTriage(t, st, models.TriageInProgress, 92, "resp-3")
	seedTriage(t, st, models.TriageCreated, 80, "")
	seedTriage(t, st, models.TriageCompleted, 95, "resp-1")

	seedIncident(t, st, models.IncidentOpen, models.SeverityCritical)
	seedIncident(t, st, models.IncidentInProgress, models.SeverityLow)
	seedIncident(t, st, models.IncidentClosed, models.SeverityCritical)

	d, err := New(st).Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, d.ActiveSOS)
	assert.Equal(t, 50.0, d.GoldenHourPercent)
	assert.Equal(t, 2, d.LiveReports)
	assert.Equal(t, 1, d.CriticalIncidents, "closed incidents no longer count")
	assert.Equal(t, 1, d.HighPriorityTriage, "score 80 and completed work are excluded")
	// resp-1 (ack), resp-2 (ack), resp-3 (open triage). The completed
	// triage assignment of resp-1 adds nothing new.
	assert.Equal(t, 3, d.ActiveResponders)

	assert.Equal(t, 4, d.Trends.NewSOS)
	assert.Equal(t, 3, d.Trends.NewTriage)
	assert.Equal(t, 3, d.Trends.NewIncidents)
	assert.Equal(t, 2, d.Trends.ResolvedSOS)
	assert.Equal(t, 1, d.Trends.CompletedWork)
	assert.Equal(t, 1, d.Trends.ClosedIncident)
}

func TestDashboardEmptyStores(t *testing.T) {
	d, err := New(store.NewMemoryStore()).Dashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, d.ActiveSOS)
	assert.Zero(t, d.ActiveResponders)
	assert.Zero(t, d.GoldenHourPercent, "no graded signals means 0, not NaN")
	assert.NotEmpty(t, d.GeneratedAt)
}
