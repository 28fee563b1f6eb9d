// Package events fans repository change events out to live clients: browser
// maps over WebSocket and other services over MQTT.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/babui-rent/babui/internal/domain"
)

// Message is the wire form of a change event
type Message struct {
	Kind       domain.ChangeKind `json:"kind"`
	PropertyID string            `json:"propertyId"`
	Property   *domain.Property  `json:"property,omitempty"`
	At         time.Time         `json:"at"`
}

// NewMessage converts a change event. Removals carry only the id.
func NewMessage(ev domain.ChangeEvent) Message {
	m := Message{Kind: ev.Kind, PropertyID: ev.PropertyID, At: ev.At}
	if ev.Kind != domain.ChangeRemoved {
		p := ev.Property
		m.Property = &p
	}
	return m
}

// Subscription is one live consumer of the hub
type Subscription struct {
	C      <-chan []byte
	ch     chan []byte
	hub    *Hub
	closed bool
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub broadcasts encoded change messages to subscribers. A subscriber whose
// buffer is full is dropped rather than allowed to stall repository writers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscribers buffer up to buffer messages
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer, logger: logger}
}

// Subscribe registers a new consumer
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan []byte, h.buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s)
	close(s.ch)
}

// Len returns the number of connected subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish encodes ev and offers it to every subscriber without blocking.
// It has the domain.ChangeListener signature.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		h.logger.Error("failed to encode change event",
			slog.String("property_id", ev.PropertyID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- data:
		default:
			h.logger.Warn("dropping slow change subscriber", slog.String("property_id", ev.PropertyID))
			s.closed = true
			delete(h.subs, s)
			close(s.ch)
		}
	}
}

// Shutdown closes every subscription so their writers can exit
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		s.closed = true
		delete(h.subs, s)
		close(s.ch)
	}
}
