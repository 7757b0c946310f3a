package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resqlabs/resq/internal/models"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env wireEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := dialHub(t, h)
	b := dialHub(t, h)
	time.Sleep(50 * time.Millisecond) // registrations land in the hub loop

	require.NoError(t, h.Publish(ctx, "k", models.Event{
		Name:    models.EventSOSBroadcast,
		Payload: map[string]string{"hello": "world"},
	}))

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, models.EventSOSBroadcast, env.Event)
		assert.Empty(t, env.Sector)
	}
}

func TestHubSectorScoping(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	member := dialHub(t, h)
	outsider := dialHub(t, h)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, member.WriteJSON(map[string]string{
		"action": "join-sector",
		"sector": "sector-7",
	}))
	time.Sleep(50 * time.Millisecond) // membership lands in the hub loop

	require.NoError(t, h.PublishSector(ctx, "sector-7", "k", models.Event{
		Name:    models.EventNewSOS,
		Payload: map[string]string{"msg": "alert"},
	}))

	env := readEnvelope(t, member)
	assert.Equal(t, models.EventNewSOS, env.Event)
	assert.Equal(t, "sector-7", env.Sector)

	// The outsider sees nothing on the sector channel.
	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := outsider.ReadMessage()
	assert.Error(t, err, "expected a read timeout, got a message")

	// After leaving, the member stops receiving too.
	require.NoError(t, member.WriteJSON(map[string]string{
		"action": "leave-sector",
		"sector": "sector-7",
	}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, h.PublishSector(ctx, "sector-7", "k", models.Event{
		Name: models.EventNewSOS,
	}))
	require.NoError(t, member.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = member.ReadMessage()
	assert.Error(t, err)
}
