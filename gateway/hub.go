package gateway

import (
	"encoding/json"
	"sync"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/logging"
)

// sender is the per-connection outbound surface the hub writes to. The
// websocket client implements it; tests substitute a recording fake.
type sender interface {
	Send(data []byte) bool
	Close()
}

// Hub implements core.Broadcaster over the set of live connections on this
// process instance. Group membership is resolved through the session
// registry at publish time, so the hub itself only tracks connection id ->
// transport.
type Hub struct {
	logger logging.Logger

	mu       sync.RWMutex
	conns    map[string]sender
	resolver func(sessionID string) []string
}

// NewHub constructs an empty hub.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Hub{logger: logger, conns: make(map[string]sender)}
}

// SetResolver wires the session -> connection-set lookup. Must be called
// before the first Publish; kept separate from the constructor because the
// registry needs the hub as its Broadcaster.
func (h *Hub) SetResolver(resolver func(sessionID string) []string) {
	h.mu.Lock()
	h.resolver = resolver
	h.mu.Unlock()
}

// Add registers a connection's transport under its id.
func (h *Hub) Add(connID string, s sender) {
	h.mu.Lock()
	h.conns[connID] = s
	h.mu.Unlock()
}

// Remove forgets the connection. The transport is not closed here; the read
// pump owns that.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Publish implements core.Broadcaster: the event is pushed to every
// connection currently registered under the session. A connection whose send
// buffer is full is skipped rather than blocking the broadcast.
func (h *Hub) Publish(sessionID string, event core.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event %s: %v", event.ID, err)
		return
	}

	h.mu.RLock()
	resolver := h.resolver
	h.mu.RUnlock()
	if resolver == nil {
		return
	}

	for _, connID := range resolver(sessionID) {
		h.mu.RLock()
		s, ok := h.conns[connID]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if !s.Send(data) {
			h.logger.Warn("dropping event %s for slow connection %s", event.Type, connID)
		}
	}
}

// SendTo pushes an event to a single connection regardless of session
// membership. Used for direct replies to inbound operations.
func (h *Hub) SendTo(connID string, event core.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event %s: %v", event.ID, err)
		return
	}
	h.mu.RLock()
	s, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !s.Send(data) {
		h.logger.Warn("dropping reply %s for slow connection %s", event.Type, connID)
	}
}
