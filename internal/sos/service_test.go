package sos

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

func delhiLocation(sector string) models.Location {
	return models.Location{
		Coordinates: []float64{77.2090, 28.6139},
		Address:     "Connaught Place",
		Sector:      sector,
	}
}

func validBroadcast() BroadcastRequest {
	return BroadcastRequest{
		UserID:      "user-1",
		UserName:    "Asha",
		Location:    delhiLocation("sector-7"),
		Severity:    models.SeverityCritical,
		Description: "rising water, roof access only",
	}
}

func TestBroadcastCreatesSignal(t *testing.T) {
	svc, _, rec := newTestService()

	got, err := svc.Broadcast(context.Background(), validBroadcast())
	require.NoError(t, err)

	assert.Equal(t, models.SOSBroadcasting, got.Status)
	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.Equal(t, 5.0, got.BroadcastRadiusKm)
	assert.Equal(t, 0, got.RespondersNearby, "first signal in an area has no neighbours")
	assert.Empty(t, got.AcknowledgedBy)

	global := rec.Named(models.EventSOSBroadcast)
	require.Len(t, global, 1)
	payload := global[0].Event.Payload.(models.SOSBroadcastPayload)
	assert.Equal(t, got.ID, payload.SOSID)
	assert.Equal(t, "Asha", payload.UserName)

	sector := rec.Named(models.EventNewSOS)
	require.Len(t, sector, 1)
	assert.Equal(t, "sector-7", sector[0].Sector)
}

func TestBroadcastWithoutSectorSkipsSectorAlert(t *testing.T) {
	svc, _, rec := newTestService()

	req := validBroadcast()
	req.Location = delhiLocation("")
	_, err := svc.Broadcast(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, rec.Named(models.EventSOSBroadcast), 1)
	assert.Empty(t, rec.Named(models.EventNewSOS))
}

func TestBroadcastRejectsBadCoordinates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req := validBroadcast()
	req.Location.Coordinates = nil
	_, err := svc.Broadcast(ctx, req)
	assert.True(t, models.IsValidation(err))

	req.Location.Coordinates = []float64{200, 95}
	_, err = svc.Broadcast(ctx, req)
	assert.True(t, models.IsValidation(err))
}

func TestBroadcastDefaultsSeverity(t *testing.T) {
	svc, _, _ := newTestService()

	req := validBroadcast()
	req.Severity = ""
	got, err := svc.Broadcast(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, got.Severity)
}

func TestBroadcastSnapshotsNearbyActivity(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)
	assert.Equal(t, 0, first.RespondersNearby)

	// ~1.1 km away, well inside the 10 km discovery radius.
	req := validBroadcast()
	req.UserID = "user-2"
	req.Location.Coordinates = []float64{77.2090, 28.6239}
	second, err := svc.Broadcast(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.RespondersNearby)

	// The snapshot is immutable: the first signal stays at zero.
	refetched, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refetched.RespondersNearby)
}

func TestAcknowledgePromotesAndIsIdempotent(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	acked, err := svc.Acknowledge(ctx, sig.ID, "resp-1", "Bilal")
	require.NoError(t, err)
	assert.Equal(t, models.SOSAcknowledged, acked.Status)
	require.Len(t, acked.AcknowledgedBy, 1)

	again, err := svc.Acknowledge(ctx, sig.ID, "resp-1", "Bilal")
	require.NoError(t, err)
	assert.Len(t, again.AcknowledgedBy, 1)
	assert.Len(t, rec.Named(models.EventSOSAcknowledged), 1, "repeat ack emits nothing")

	more, err := svc.Acknowledge(ctx, sig.ID, "resp-2", "Chen")
	require.NoError(t, err)
	assert.Len(t, more.AcknowledgedBy, 2)
	assert.Equal(t, models.SOSAcknowledged, more.Status)
}

func TestAcknowledgeConcurrentDuplicates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Acknowledge(ctx, sig.ID, "resp-1", "Bilal")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Len(t, got.AcknowledgedBy, 1)
	assert.Equal(t, models.SOSAcknowledged, got.Status)
}

func TestLateAcknowledgeNeverDemotes(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, sig.ID, "resp-1", "Bilal")
	require.NoError(t, err)
	responded, err := svc.UpdateStatus(ctx, sig.ID, models.SOSResponded, "resp-1", "Bilal")
	require.NoError(t, err)

	late, err := svc.Acknowledge(ctx, sig.ID, "resp-2", "Chen")
	require.NoError(t, err)
	assert.Equal(t, responded.Status, late.Status, "late ack is recorded but does not move status")
	assert.Len(t, late.AcknowledgedBy, 2)
}

func TestAcknowledgeOnTerminalSignal(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, sig.ID, models.SOSResolved, "resp-1", "Bilal")
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, sig.ID, "resp-2", "Chen")
	assert.True(t, models.IsInvalidTransition(err))
}

func TestUpdateStatusRecordsResolutionOnce(t *testing.T) {
	svc, _, rec := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	resolved, err := svc.UpdateStatus(ctx, sig.ID, models.SOSResolved, "resp-1", "Bilal")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "resp-1", resolved.ResolvedBy.UserID)

	again, err := svc.UpdateStatus(ctx, sig.ID, models.SOSResolved, "resp-2", "Chen")
	require.NoError(t, err)
	require.NotNil(t, again.ResolvedBy)
	assert.Equal(t, "resp-1", again.ResolvedBy.UserID, "resolvedBy is never overwritten")

	assert.Len(t, rec.Named(models.EventSOSStatusUpdated), 2)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	sig, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, sig.ID, models.SOSResolved, "resp-1", "Bilal")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, sig.ID, models.SOSBroadcasting, "resp-1", "Bilal")
	assert.True(t, models.IsInvalidTransition(err))

	_, err = svc.UpdateStatus(ctx, sig.ID, "LEVITATING", "resp-1", "Bilal")
	assert.True(t, models.IsValidation(err))
}

func TestNearbyFiltersAndSorts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	origin := []float64{77.2090, 28.6139}

	near := validBroadcast()
	near.Location.Coordinates = []float64{77.2090, 28.6239} // ~1.1 km north
	nearSig, err := svc.Broadcast(ctx, near)
	require.NoError(t, err)

	far := validBroadcast()
	far.Location.Coordinates = []float64{77.2090, 28.6439} // ~3.3 km north
	farSig, err := svc.Broadcast(ctx, far)
	require.NoError(t, err)

	gone := validBroadcast()
	gone.Location.Coordinates = []float64{77.2090, 28.6150}
	goneSig, err := svc.Broadcast(ctx, gone)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, goneSig.ID, models.SOSResolved, "resp-1", "Bilal")
	require.NoError(t, err)

	hits, err := svc.Nearby(ctx, origin[0], origin[1], 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2, "resolved signals are not discoverable")
	assert.Equal(t, nearSig.ID, hits[0].ID)
	assert.Equal(t, farSig.ID, hits[1].ID)
	assert.Less(t, hits[0].DistanceMeters, hits[1].DistanceMeters)

	_, err = svc.Nearby(ctx, 200, 95, 0, 0)
	assert.True(t, models.IsValidation(err))
}

func TestListOrdersNewestFirst(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	b, err := svc.Broadcast(ctx, validBroadcast())
	require.NoError(t, err)

	// Broadcasts land within the same instant on a fast machine; spread
	// them so the ordering assertion is deterministic.
	a.CreatedAt = a.CreatedAt.Add(-time.Minute)
	_, err = st.UpdateSOS(ctx, a, a.Status)
	require.NoError(t, err)

	got, err := svc.List(ctx, store.SOSFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}

func TestGetUnknownID(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
