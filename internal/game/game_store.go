// internal/game/game_store.go
package game

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// gameEntry serializes writers of one game and tracks the computer decisions
// computed against it.
type gameEntry struct {
	mu      sync.Mutex
	epoch   uint64
	pending map[uint64]context.CancelFunc
	// refs counts lock holders and waiters.
	refs int
	// retired entries are dropped once nothing references them.
	retired bool
}

// GameStore holds the in-process coordination state of the games the engine
// is driving. Game data itself lives in the state store. Entries are created
// on first use and dropped once their game is invalidated and idle.
type GameStore struct {
	mu     sync.Mutex
	games  map[uuid.UUID]*gameEntry
	nextID uint64
	// epochs hands out generations; values are never reused across entries.
	epochs uint64
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*gameEntry),
	}
}

// entryLocked returns the entry for id, creating it. The caller holds s.mu.
func (s *GameStore) entryLocked(id uuid.UUID) *gameEntry {
	e, ok := s.games[id]
	if !ok {
		s.epochs++
		e = &gameEntry{epoch: s.epochs, pending: make(map[uint64]context.CancelFunc)}
		s.games[id] = e
	}
	return e
}

// releaseLocked drops a retired entry nothing references. The caller holds s.mu.
func (s *GameStore) releaseLocked(id uuid.UUID, e *gameEntry) {
	if e.retired && e.refs == 0 && len(e.pending) == 0 && s.games[id] == e {
		delete(s.games, id)
	}
}

// Lock takes the writer lock of a game and returns its release.
func (s *GameStore) Lock(id uuid.UUID) func() {
	s.mu.Lock()
	e := s.entryLocked(id)
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		e.refs--
		s.releaseLocked(id, e)
	}
}

// Epoch returns the current generation of a game. Call it only for games that
// exist; it registers the game when it has no entry yet.
func (s *GameStore) Epoch(id uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(id).epoch
}

// Current reports whether epoch is still the generation of a game. A game
// whose entry was dropped is never current.
func (s *GameStore) Current(id uuid.UUID, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.games[id]
	return ok && e.epoch == epoch
}

// Invalidate moves a game to a new epoch, cancels every decision in flight
// and retires its entry.
func (s *GameStore) Invalidate(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.epochs++
	e.epoch = s.epochs
	e.retired = true
	cancels := e.pending
	e.pending = make(map[uint64]context.CancelFunc)
	s.releaseLocked(id, e)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// track registers cancel under the game and returns the matching release.
func (s *GameStore) track(id uuid.UUID, cancel context.CancelFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id)
	s.nextID++
	key := s.nextID
	e.pending[key] = cancel
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(e.pending, key)
		s.releaseLocked(id, e)
	}
}

// InFlight returns the number of decisions currently tracked for a game.
func (s *GameStore) InFlight(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.games[id]; ok {
		return len(e.pending)
	}
	return 0
}

// Len returns the number of games with coordination state.
func (s *GameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
