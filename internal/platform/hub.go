package platform

import (
	"sync"

	"quizplay/internal/domain"
)

// Hub fans out played events to the subscribers of each user.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.PlayedEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan domain.PlayedEvent]struct{})}
}

// Subscribe returns a channel of events for userID.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(userID string) (<-chan domain.PlayedEvent, func()) {
	ch := make(chan domain.PlayedEvent, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.PlayedEvent]struct{})
		h.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.UserID without blocking.
func (h *Hub) Publish(ev domain.PlayedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(ev)
}

// Disconnect closes every subscription of userID, e.g. after account deletion.
func (h *Hub) Disconnect(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[userID] {
		close(ch)
	}
	delete(h.subscribers, userID)
}

func (h *Hub) broadcastLocked(ev domain.PlayedEvent) {
	for ch := range h.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			// Full buffer: drop the oldest event so a slow client cannot stall plays.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
