package webapi

import (
	"sync"

	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// resultEnvelope is the JSON shape broadcast to websocket subscribers for
// each completed frame.
type resultEnvelope struct {
	Signal   []float32          `json:"signal"`
	Metadata procgraph.Metadata `json:"metadata"`
}

// Hub fans out completed PhotoacousticResult values to any number of
// websocket subscribers. Publish is non-blocking: a slow subscriber drops
// updates rather than stalling the publisher.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan resultEnvelope]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan resultEnvelope]struct{})}
}

// Subscribe registers a new subscriber and returns its channel. The
// returned channel is buffered so a brief stall doesn't drop the very next
// update.
func (h *Hub) Subscribe() chan resultEnvelope {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan resultEnvelope, 16)
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan resultEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Publish fans result out to every current subscriber. Subscribers whose
// buffer is full miss this update rather than blocking the publisher.
func (h *Hub) Publish(result procgraph.PhotoacousticResult) {
	envelope := resultEnvelope{Signal: result.Signal, Metadata: result.Metadata}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- envelope:
		default:
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
