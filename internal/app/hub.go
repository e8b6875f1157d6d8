package app

import (
	"context"
	"sync"

	"roots-quiz-service/internal/domain"
)

// Hub is the process-wide registry of live listeners. Listeners register on
// connect and cancel on disconnect; the services only see Broadcast.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan domain.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.Event]struct{})}
}

// Subscribe registers a listener. The caller must invoke the returned cancel
// function to avoid leaks.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast implements Notifier by fanning the event out locally.
func (h *Hub) Broadcast(_ context.Context, event string, payload any) error {
	h.Publish(domain.Event{Name: event, Payload: payload})
	return nil
}

// Publish delivers ev to every listener without blocking. A listener whose
// buffer is full loses its oldest pending event.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Len reports the number of registered listeners.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
