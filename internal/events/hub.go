package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var errHubStopped = errors.New("event hub stopped")

type Kind string

const (
	KindAllocationArrival   Kind = "allocation_arrival"
	KindAllocationDeparture Kind = "allocation_departure"
	KindVisitOpened         Kind = "visit_opened"
	KindVisitClosed         Kind = "visit_closed"
)

// JourneyEvent is pushed to dashboards after a detection changed something.
type JourneyEvent struct {
	Kind         Kind       `json:"kind"`
	Plate        string     `json:"plate"`
	Direction    string     `json:"direction"`
	SiteID       int        `json:"site_id"`
	AllocationID *uuid.UUID `json:"allocation_id,omitempty"`
	VisitID      *uuid.UUID `json:"visit_id,omitempty"`
	Status       string     `json:"status,omitempty"`
	TicketNumber string     `json:"ticket_number,omitempty"`
	DetectedAt   time.Time  `json:"detected_at"`
}

// Publisher must not block the caller.
type Publisher interface {
	Publish(ev JourneyEvent)
}

type Nop struct{}

func (Nop) Publish(JourneyEvent) {}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
	broadcastQueue = 256
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans journey events out to connected WebSocket clients.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "events").Logger(),
	}
}

// Run owns client registration and fan-out until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug().Int("clients", h.ClientCount()).Msg("dashboard connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues the event; it is dropped if the queue is full.
func (h *Hub) Publish(ev JourneyEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal journey event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("kind", string(ev.Kind)).Msg("event queue full, dropping journey event")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return errHubStopped
	case <-r.Context().Done():
		conn.Close()
		return r.Context().Err()
	}

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// readPump only exists to notice the peer going away and to process pongs.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
