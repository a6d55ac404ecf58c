package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"shared-tasks/internal/models"
	"shared-tasks/pkg/logger"
)

// Subscriber is one connected client session.
type Subscriber struct {
	ID     string
	events chan models.Event
}

// Events is closed when the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan models.Event {
	return s.events
}

// Hub fans committed events out to every subscriber. There is no replay:
// a session that is not registered at publish time never sees the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{subs: make(map[string]*Subscriber), buffer: buffer}
}

// Subscribe registers a new session.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ID: uuid.NewString(), events: make(chan models.Event, h.buffer)}
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the session and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.subs[s.ID]; ok && cur == s {
		delete(h.subs, s.ID)
		close(s.events)
	}
}

// Publish never blocks. A subscriber whose buffer is full is evicted so that its
// client reconnects and refetches instead of silently missing events.
func (h *Hub) Publish(ctx context.Context, ev models.Event) error {
	var slow []*Subscriber
	h.mu.RLock()
	for _, s := range h.subs {
		select {
		case s.events <- ev:
		default:
			slow = append(slow, s)
		}
	}
	n := len(h.subs)
	h.mu.RUnlock()

	for _, s := range slow {
		logger.Warn(ctx, "Evicting slow subscriber", "subscriber", s.ID, "event", ev.Type, "task_id", ev.ID)
		h.Unsubscribe(s)
	}
	logger.Debug(ctx, "Event published", "event", ev.Type, "task_id", ev.ID, "subscribers", n, "evicted", len(slow))
	return nil
}

// Close removes every session; their connections end as their channels close.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.events)
	}
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
