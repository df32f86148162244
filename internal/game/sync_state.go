// internal/game/sync_state.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
)

// GameEventType names the messages pushed to websocket subscribers.
type GameEventType string

const (
	EventSyncState GameEventType = "sync_state"
	EventGameEnd   GameEventType = "game_end"
	EventError     GameEventType = "error"
)

type GameEvent struct {
	Type    GameEventType `json:"type"`
	State   *SyncState    `json:"state,omitempty"`
	Message string        `json:"message,omitempty"`
}

// SyncState is a consistent snapshot of a game as one player sees it.
// Hand only ever holds the requesting player's own cards.
type SyncState struct {
	Status      models.GameStatus `json:"status"`
	HandCounts  map[uuid.UUID]int `json:"hand_counts"`
	DeckSize    int               `json:"deck_size"`
	DiscardSize int               `json:"discard_size"`
	Hand        []models.Card     `json:"hand,omitempty"`
}

// SyncState reads everything a client needs to render the game in one view.
// Pass uuid.Nil as forPlayer for a spectator snapshot without a hand.
func (e *Engine) SyncState(ctx context.Context, gameID, forPlayer uuid.UUID) (*SyncState, error) {
	var s SyncState
	err := e.store.View(ctx, func(tx store.Tx) error {
		status, err := statusOf(ctx, tx, gameID)
		if err != nil {
			return err
		}
		s.Status = *status

		if s.HandCounts, err = tx.HandCounts(ctx, gameID); err != nil {
			return err
		}
		locs, err := tx.CountLocations(ctx, gameID)
		if err != nil {
			return err
		}
		s.DeckSize = locs[models.InDeck]
		s.DiscardSize = locs[models.InDiscard]

		if forPlayer == uuid.Nil {
			return nil
		}
		s.Hand, err = handOf(ctx, tx, gameID, forPlayer)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return &s, nil
}
