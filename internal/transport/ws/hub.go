package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avdeyev/scenesync-server/internal/proto"
)

// sendBuffer bounds the per-connection reliable queue. The reliable
// channel must not drop, so a connection that falls this far behind is
// closed instead.
const sendBuffer = 64

// client is one live reliable connection as the hub sees it.
type client struct {
	send   chan []byte
	cancel context.CancelFunc
}

// Hub tracks live reliable connections and implements the reliable half
// of the core's Sender: addressed sends and broadcasts as ordered
// websocket text frames. Sends to a connection that is already gone are
// silently dropped.
type Hub struct {
	log *zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

// NewHub constructs an empty hub.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		log:     logger,
		clients: make(map[string]*client),
	}
}

func (h *Hub) register(connID string, c *client) {
	h.mu.Lock()
	h.clients[connID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	h.mu.Unlock()
}

// SendReliable queues msg for one connection.
func (h *Hub) SendReliable(connID string, msg proto.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal outbound")
		return
	}

	h.mu.Lock()
	c, ok := h.clients[connID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.enqueue(connID, c, data)
}

// BroadcastReliable queues msg for every live connection.
func (h *Hub) BroadcastReliable(msg proto.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal outbound")
		return
	}

	h.mu.Lock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.Unlock()

	for id, c := range targets {
		h.enqueue(id, c, data)
	}
}

// enqueue hands data to the connection's write loop. A full queue means
// the consumer stopped keeping up; the connection is torn down so the
// ordered-delivery guarantee is never silently violated.
func (h *Hub) enqueue(connID string, c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", connID).Msg("reliable send queue full, closing connection")
		c.cancel()
	}
}
