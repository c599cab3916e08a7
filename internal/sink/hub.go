package sink

import (
	"sync"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Hub fans computed-point notifications out to subscribers. A subscriber
// that stops draining its buffer is disconnected rather than allowed to
// stall the session; the sink remains the durable record of every point.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan types.Notification
	next int
}

const subscriberBuffer = 64

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan types.Notification),
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan types.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++

	ch := make(chan types.Notification, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers a notification to every subscriber. A subscriber whose
// buffer is full is dropped and its channel closed.
func (h *Hub) Publish(n types.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			delete(h.subs, id)
			close(ch)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// HubWriter adapts a Hub to the PointWriter interface so a session can tee
// its output into the notification stream.
type HubWriter struct {
	hub *Hub
}

// NewHubWriter creates a PointWriter publishing every point to the hub.
func NewHubWriter(hub *Hub) *HubWriter {
	return &HubWriter{hub: hub}
}

// Write implements PointWriter.
func (w *HubWriter) Write(key types.SeriesKey, point types.ComputedPoint) error {
	n := types.Notification{
		SessionID: key.SessionID,
		Symbol:    key.Symbol,
		VariantID: key.VariantID,
		Category:  key.Category,
		Time:      point.Time,
	}

	if point.Value.IsSome() {
		v := point.Value.Unwrap()
		n.Value = &v
	}

	w.hub.Publish(n)

	return nil
}

// Flush implements PointWriter.
func (w *HubWriter) Flush() error { return nil }

// Close implements PointWriter.
func (w *HubWriter) Close() error { return nil }
