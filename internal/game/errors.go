// internal/game/errors.go
package game

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeckExhausted means neither the deck nor the recyclable discard pile
	// holds a card. It indicates a broken card-conservation invariant.
	ErrDeckExhausted = errors.New("deck exhausted")

	ErrInvalidMove    = errors.New("invalid move")
	ErrGameNotFound   = errors.New("game not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidPlayer  = errors.New("invalid player")

	// ErrTransactionFailure wraps any store failure during a write; the whole
	// operation has been rolled back.
	ErrTransactionFailure = errors.New("transaction failure")

	ErrGameFinished     = errors.New("game already finished")
	ErrNotPlayersTurn   = errors.New("not this player's turn")
	ErrCardNotInHand    = errors.New("card not in player's hand")
	ErrNotEnoughPlayers = errors.New("a game needs at least two players")
	ErrTooManyPlayers   = errors.New("too many players for one deck")
	ErrStaleDecision    = errors.New("computer decision no longer applies")
)

var domainErrors = []error{
	ErrDeckExhausted,
	ErrInvalidMove,
	ErrGameNotFound,
	ErrPlayerNotFound,
	ErrInvalidPlayer,
	ErrTransactionFailure,
	ErrGameFinished,
	ErrNotPlayersTurn,
	ErrCardNotInHand,
	ErrNotEnoughPlayers,
	ErrTooManyPlayers,
	ErrStaleDecision,
	context.Canceled,
	context.DeadlineExceeded,
}

// classify leaves engine errors as they are and wraps everything else as a
// transaction failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailure, err)
}
