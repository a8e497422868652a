// Package hub fans serialized messages out to the live observer set,
// pruning observers whose delivery fails.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/robotic-testing/rtb/internal/metrics"
)

// Sink is an observer endpoint. Deliver must bound its own write (a
// deadline on the underlying transport) so one stuck observer cannot
// stall a broadcast indefinitely. Close must be idempotent: the hub
// closes sinks it evicts, and the sink's owner may close it again
// during its own cleanup.
type Sink interface {
	ID() string
	Deliver(payload []byte) error
	Close() error
}

// Message is the broadcast envelope shared by all observer transports.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub owns the observer set. Broadcasts are serialized so each observer
// sees messages in submission order; observers are independent of each
// other and a failing one never blocks the rest.
//
// LOCK ORDERING: broadcastMu is taken before mu and is never taken while
// holding mu.
type Hub struct {
	mu    sync.RWMutex
	sinks map[string]Sink

	broadcastMu sync.Mutex

	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		sinks:   make(map[string]Sink),
		log:     log,
		metrics: m,
	}
}

// Register adds a sink to the observer set. Registering an already
// present ID is a no-op.
func (h *Hub) Register(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sinks[s.ID()]; exists {
		return
	}
	h.sinks[s.ID()] = s
	h.metrics.SetObservers(len(h.sinks))
	h.log.Debug("observer registered", "observer", s.ID(), "total", len(h.sinks))
}

// Unregister removes a sink by ID. Removing an absent sink is a no-op.
// The sink itself is not closed; its owner does that.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sinks[id]; !exists {
		return
	}
	delete(h.sinks, id)
	h.metrics.SetObservers(len(h.sinks))
	h.log.Debug("observer unregistered", "observer", id, "total", len(h.sinks))
}

// Count returns the current observer count.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Broadcast serializes the message once and delivers it to every current
// observer. Observers whose delivery fails are dropped from the set as
// part of this call; failures are never surfaced to the caller. Sinks
// registered while a broadcast is in flight may miss that message.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.log.Error("failed to marshal broadcast message", "type", msgType, "error", err)
		return
	}

	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	h.mu.RLock()
	snapshot := make([]Sink, 0, len(h.sinks))
	for _, s := range h.sinks {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	var failed []Sink
	for _, s := range snapshot {
		if err := s.Deliver(payload); err != nil {
			failed = append(failed, s)
			h.metrics.BroadcastFailed()
			h.log.Debug("observer delivery failed, dropping", "observer", s.ID(), "error", err)
		}
	}

	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, s := range failed {
		if current, ok := h.sinks[s.ID()]; ok && current == s {
			delete(h.sinks, s.ID())
			_ = s.Close()
		}
	}
	h.metrics.SetObservers(len(h.sinks))
	h.mu.Unlock()
}

// Stop closes and removes every observer.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.sinks {
		_ = s.Close()
		delete(h.sinks, id)
	}
	h.metrics.SetObservers(0)
}
