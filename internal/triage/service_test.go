package triage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlabs/resq/internal/fanout"
	"github.com/resqlabs/resq/internal/models"
	"github.com/resqlabs/resq/internal/store"
)

func newTestService() (*Service, *store.MemoryStore, *fanout.Recorder) {
	st := store.NewMemoryStore()
	rec := fanout.NewRecorder()
	return New(st, rec), st, rec
}

func validCreate() CreateRequest {
	return CreateRequest{
		Category: models.CategoryCritical,
		Location: models.Location{
			Coordinates: []float64{77.2090, 28.6139},
			Address:     "Connaught Place",
			Sector:      "sector-7",
			DistanceKm:  1.5,
		},
		Need:          "trapped family on second floor",
		AffectedCount: 3,
		UserID:        "user-1",
		UserName:      "Asha",
	}
}

func TestCreateScoresAndEmits(t *testing.T) {
	svc, _, rec := newTestService()

	got, err := svc.Create(context.Background(), validCreate())
	require.NoError(t, err)

	assert.Equal(t, models.TriageCreated, got.Status)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, 4, got.Priority)
	assert.Equal(t, 8, got.EstimatedResponseTime)
	assert.Regexp(t, `^REQ-[0-9A-F]{6}$`, got.RequestID)
	assert.Nil(t, got.ActualResponseTime)

	events := rec.Named(models.EventNewTriage)
	require.Len(t, events, 1)
	payload := events[0].Event.Payload.(models.NewTriagePayload)
	assert.Equal(t, got.ID, payload.TriageID)
	assert.Equal(t, 100, payload.Score)
}

func TestCreateValidation(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"unknown category", func(r *CreateRequest) { r.Category = "Sharks" }},
		{"empty need", func(r *CreateRequest) { r.Need = "  " }},
		{"negative affected", func(r *CreateRequest) { r.AffectedCount = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreate()
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			assert.True(t, models.IsValidation(err), "want ValidationError, got %v", err)
		})
	}
	assert.Empty(t, rec.Events(), "rejected intakes must not emit")
}

func TestCreateZeroAffectedScoresNoBonus(t *testing.T) {
	svc, _, _ := newTestService()

	req := validCreate()
	req.Category = models.CategoryOther
	req.Location.DistanceKm = 12
	req.AffectedCount = 0

	got, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 65, got.Score)
	assert.Equal(t, 2, got.Priority)
}

func TestAssignPromotesAndIsIdempotent(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	first, err := svc.Assign(ctx, created.ID, "resp-1", "Bilal", "Medic")
	require.NoError(t, err)
	assert.Equal(t, models.TriageAssigned, first.Status)
	require.Len(t, first.AssignedTo, 1)
	assert.Equal(t, "Medic", first.AssignedTo[0].Role)
	require.Len(t, first.Updates, 1)

	again, err := svc.Assign(ctx, created.ID, "resp-1", "Bilal", "Medic")
	require.NoError(t, err)
	assert.Len(t, again.AssignedTo, 1)
	assert.Len(t, rec.Named(models.EventTriageAssigned), 1, "repeat assign emits nothing")

	second, err := svc.Assign(ctx, created.ID, "resp-2", "Chen", "")
	require.NoError(t, err)
	assert.Len(t, second.AssignedTo, 2)
	assert.Equal(t, "Responder", second.AssignedTo[1].Role)
	assert.Equal(t, models.TriageAssigned, second.Status)
}

func TestAssignConcurrentSameResponder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assign(ctx, created.ID, "resp-1", "Bilal", "Medic")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.AssignedTo, 1, "duplicate assignments from a race must collapse")
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.ID, models.TriageInProgress, "en route", "resp-1", "Bilal")
	require.NoError(t, err, "forward skips over ASSIGNED are allowed")

	done, err := svc.UpdateStatus(ctx, created.ID, models.TriageCompleted, "", "resp-1", "Bilal")
	require.NoError(t, err)
	assert.Equal(t, models.TriageCompleted, done.Status)

	_, err = svc.UpdateStatus(ctx, created.ID, models.TriageInProgress, "", "resp-1", "Bilal")
	assert.True(t, models.IsInvalidTransition(err), "want InvalidTransitionError, got %v", err)

	assert.Len(t, rec.Named(models.EventTriageStatusUpdated), 2)
}

func TestUpdateStatusCancelBranch(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	cancelled, err := svc.UpdateStatus(ctx, created.ID, models.TriageCancelled, "caller safe", "user-1", "Asha")
	require.NoError(t, err)
	assert.Equal(t, models.TriageCancelled, cancelled.Status)

	_, err = svc.UpdateStatus(ctx, created.ID, models.TriageAssigned, "", "resp-1", "Bilal")
	assert.True(t, models.IsInvalidTransition(err))
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, created.ID, "TELEPORTED", "", "resp-1", "Bilal")
	assert.True(t, models.IsValidation(err))
}

func TestActualResponseTimeSetOnce(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, created.ID, models.TriageCompleted, "", "resp-1", "Bilal")
	require.NoError(t, err)
	require.NotNil(t, done.ActualResponseTime)
	firstART := *done.ActualResponseTime
	assert.Equal(t, 0, firstART)

	// Shift createdAt into the past; a buggy recompute on the repeat
	// completion below would now land on ~90 minutes.
	done.CreatedAt = done.CreatedAt.Add(-90 * time.Minute)
	_, err = st.UpdateTriage(ctx, done, models.TriageCompleted)
	require.NoError(t, err)

	again, err := svc.UpdateStatus(ctx, created.ID, models.TriageCompleted, "", "resp-1", "Bilal")
	require.NoError(t, err)
	require.NotNil(t, again.ActualResponseTime)
	assert.Equal(t, firstART, *again.ActualResponseTime)
}

func TestHighPriorityQueue(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	low := validCreate()
	low.Category = models.CategoryOther
	low.Location.DistanceKm = 12
	low.AffectedCount = 0
	_, err := svc.Create(ctx, low) // score 65
	require.NoError(t, err)

	high, err := svc.Create(ctx, validCreate()) // score 100
	require.NoError(t, err)

	mid := validCreate()
	mid.Category = models.CategoryMedical
	mid.Location.DistanceKm = 4
	mid.AffectedCount = 2 // 50+30+15+4 = 99
	midReq, err := svc.Create(ctx, mid)
	require.NoError(t, err)

	queue, err := svc.HighPriority(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, high.ID, queue[0].ID)
	assert.Equal(t, midReq.ID, queue[1].ID)

	_, err = svc.UpdateStatus(ctx, high.ID, models.TriageCompleted, "", "resp-1", "Bilal")
	require.NoError(t, err)

	queue, err = svc.HighPriority(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1, "completed requests leave the queue")
	assert.Equal(t, midReq.ID, queue[0].ID)
}

func TestAssignedToListsOpenWork(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	b, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	_, err = svc.Assign(ctx, a.ID, "resp-1", "Bilal", "Medic")
	require.NoError(t, err)
	_, err = svc.Assign(ctx, b.ID, "resp-1", "Bilal", "Medic")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, b.ID, models.TriageCompleted, "", "resp-1", "Bilal")
	require.NoError(t, err)

	open, err := svc.AssignedTo(ctx, "resp-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)
}

func TestGetUnknownID(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
