package fanout

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/resqlabs/resq/internal/models"
)

// Hub maintains the set of connected socket clients and fans dispatch
// events out to them. Clients may join sector rooms to additionally
// receive sector-scoped emissions.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	membership chan membershipChange
}

type outbound struct {
	sector string // empty means every client
	data   []byte
}

type membershipChange struct {
	client *Client
	sector string
	join   bool
}

type wireEnvelope struct {
	Event   string      `json:"event"`
	Sector  string      `json:"sector,omitempty"`
	Payload interface{} `json:"payload"`
	Ts      time.Time   `json:"ts"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		membership: make(chan membershipChange),
	}
}

// Run owns all client-set mutation. Call it once, in its own
// goroutine, before serving connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			log.Printf("[fanout] socket client connected: %s", c.conn.RemoteAddr())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("[fanout] socket client disconnected: %s", c.conn.RemoteAddr())
			}

		case m := <-h.membership:
			if _, ok := h.clients[m.client]; ok {
				if m.join {
					m.client.sectors[m.sector] = true
				} else {
					delete(m.client.sectors, m.sector)
				}
			}

		case out := <-h.broadcast:
			for c := range h.clients {
				if out.sector != "" && !c.sectors[out.sector] {
					continue
				}
				select {
				case c.send <- out.data:
				default:
					// Slow consumer: drop the connection rather than
					// stall the fan-out loop.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

func (h *Hub) Publish(ctx context.Context, key string, ev models.Event) error {
	return h.emit("", ev)
}

func (h *Hub) PublishSector(ctx context.Context, sector, key string, ev models.Event) error {
	return h.emit(sector, ev)
}

func (h *Hub) emit(sector string, ev models.Event) error {
	data, err := json.Marshal(wireEnvelope{
		Event:   ev.Name,
		Sector:  sector,
		Payload: ev.Payload,
		Ts:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{sector: sector, data: data}:
	default:
		// Best-effort channel: when the hub is saturated or not
		// running, dropping beats blocking a lifecycle operation.
		log.Printf("[fanout] hub broadcast buffer full, dropping %s", ev.Name)
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin from the dashboard; access
	// control happens at the auth middleware, not the socket upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades an HTTP request to a socket connection and attaches
// it to the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[fanout] websocket upgrade failed: %v", err)
		return
	}
	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 64),
		sectors: make(map[string]bool),
	}
	h.register <- c
	go c.writePump()
	go c.readPump()
}
