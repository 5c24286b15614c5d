package chat

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/palchat/backend/internal/metrics"
)

// ErrHubClosed is returned when registering a client after Close.
var ErrHubClosed = errors.New("chat hub closed")

// Hub tracks every live client and routes events to the clients joined under
// a routing key. Enqueueing never blocks; a client whose buffer is full is
// stopped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	routes  map[string]map[*Client]struct{}
	closed  bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		routes:  make(map[string]map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Register adds c to the set of clients receiving broadcasts.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

// Unregister removes c from every routing set. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
	if c.key == "" {
		return
	}
	if set, ok := h.routes[c.key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.routes, c.key)
		}
	}
}

// Join binds c to key. A client is bound to at most one key; joining the same
// key again is a no-op.
func (h *Hub) Join(c *Client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok || c.key == key {
		return
	}
	if c.key != "" {
		if set, ok := h.routes[c.key]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.routes, c.key)
			}
		}
	}
	c.key = key
	set, ok := h.routes[key]
	if !ok {
		set = make(map[*Client]struct{})
		h.routes[key] = set
	}
	set[c] = struct{}{}
}

// DeliverTo queues payload for every client joined under key and returns how
// many accepted it.
func (h *Hub) DeliverTo(key string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.routes[key] {
		if h.enqueueLocked(c, payload) {
			delivered++
		}
	}
	return delivered
}

// Send queues payload for a single client.
func (h *Hub) Send(c *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.enqueueLocked(c, payload)
}

// BroadcastPresence sends the presence snapshot to every registered client.
func (h *Hub) BroadcastPresence(snapshot map[string]string) {
	payload, err := encodeEvent(EventOnlineStatus, snapshot)
	if err != nil {
		h.logger.Error("encode presence snapshot", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		h.enqueueLocked(c, payload)
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Members returns the number of clients joined under key.
func (h *Hub) Members(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.routes[key])
}

// Close stops every client and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		c.stop()
	}
}

func (h *Hub) enqueueLocked(c *Client, payload []byte) bool {
	queued, dropped := c.enqueue(payload)
	if dropped {
		h.metrics.SlowClientDropped()
		h.logger.Warn("dropping slow websocket client", slog.String("conn_id", c.id), slog.String("username", c.key))
	}
	return queued
}
