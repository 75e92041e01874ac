package feed

import (
	"sync"

	"market_sim/internal/event"
)

type subscription[T any] struct {
	ch chan T
}

type hub[T any] struct {
	mu   sync.RWMutex
	subs map[*subscription[T]]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[*subscription[T]]struct{})}
}

func (h *hub[T]) Subscribe(buffer int) *subscription[T] {
	sub := &subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub[T]) Unsubscribe(sub *subscription[T]) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Broadcast never blocks: slow subscribers miss values.
func (h *hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
		}
	}
}

func (h *hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Events fans sequencer events out to websocket clients. Publish has the
// signature of event.Handler.
type Events struct {
	hub *hub[event.Event]
}

// NewEvents creates an empty event hub.
func NewEvents() *Events {
	return &Events{hub: newHub[event.Event]()}
}

// Publish delivers ev to every connected client without blocking.
func (e *Events) Publish(ev event.Event) {
	e.hub.Broadcast(ev)
}

// Subscribers returns the number of connected clients.
func (e *Events) Subscribers() int {
	return e.hub.Len()
}
