package bus

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub holds the websocket clients of this process and writes events to
// them. Delivery is at most once: a client whose buffer is full misses the
// event, and a disconnected client misses everything until it reconnects.
type Hub struct {
	config   *Config
	metrics  *Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	events map[string]bool
}

func newHub(config *Config, metrics *Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		config:  config,
		metrics: metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket. The optional events query
// parameter is a comma separated list of event names to receive; without it
// the client receives every event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, h.config.ClientBuffer),
		events: parseEvents(r.URL.Query().Get("events")),
	}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func parseEvents(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	events := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			events[name] = true
		}
	}
	return events
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.clients.Add(1)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.clients.Add(-1)
	}
	h.mu.Unlock()
}

// readPump discards client frames and unregisters the client once its
// connection fails.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Msg("websocket write failed")
			return
		}
		h.metrics.delivered.Add(1)
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// broadcast queues env on every interested client without blocking.
func (h *Hub) broadcast(env Envelope) {
	env.Origin = ""
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("event", env.Event).Msg("encode event failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.events != nil && !c.events[env.Event] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.metrics.dropped.Add(1)
			h.log.Warn().Str("event", env.Event).Msg("slow client, event dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close disconnects every client.
func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.clients.Add(-1)
	}
}
