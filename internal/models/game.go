package models

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Clockwise        Direction = "clockwise"
	Counterclockwise Direction = "counterclockwise"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Counterclockwise {
		return Clockwise
	}
	return Counterclockwise
}

type GameStatusKind string

const (
	StatusSetup    GameStatusKind = "setup"
	StatusOngoing  GameStatusKind = "ongoing"
	StatusFinished GameStatusKind = "finished"
)

// Location is where a card of a game's deck currently sits.
type Location string

const (
	InDeck    Location = "in_deck"
	InHand    Location = "in_hand"
	InDiscard Location = "in_discard"
)

// GameState is the persisted state of one game, written only by the move processor.
type GameState struct {
	ID           uuid.UUID      `json:"game_id"`
	CurrentTurn  uuid.UUID      `json:"current_turn"`
	Direction    Direction      `json:"direction"`
	TopCardID    int            `json:"top_card_id"`
	ActiveColor  Color          `json:"active_color"`
	PendingDraws int            `json:"pending_draws"`
	Status       GameStatusKind `json:"status"`
	WinnerID     uuid.UUID      `json:"winner_id,omitempty"`
	PlayerOrder  []uuid.UUID    `json:"player_order"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GameStatus is the read model handed to observers: the state plus the resolved top card.
type GameStatus struct {
	GameState
	TopCard Card `json:"top_card"`
}
