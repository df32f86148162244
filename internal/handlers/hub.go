// internal/handlers/hub.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one websocket connection watching a game. wake holds at most
// one pending signal, so bursts of commits collapse into a single snapshot.
type Subscriber struct {
	playerID uuid.UUID
	wake     chan struct{}
}

// Hub fans engine state changes out to the websocket connections of a game.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscriber]struct{})}
}

// Subscribe registers a connection for gameID. The returned func removes it.
func (h *Hub) Subscribe(gameID, playerID uuid.UUID) (*Subscriber, func()) {
	s := &Subscriber{playerID: playerID, wake: make(chan struct{}, 1)}

	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[gameID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	return s, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[gameID], s)
		if len(h.subs[gameID]) == 0 {
			delete(h.subs, gameID)
		}
	}
}

// Notify wakes every connection of gameID. It never blocks, so it is safe to
// pass as the engine's state observer.
func (h *Hub) Notify(gameID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[gameID] {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns how many connections watch gameID.
func (h *Hub) Subscribers(gameID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}
