package models

import (
	"time"

	"github.com/google/uuid"
)

type MoveAction string

const (
	ActionPlayed         MoveAction = "played"
	ActionDrawnAndPassed MoveAction = "drawn_and_passed"
)

// MoveRecord is an append-only log entry. CardID is nil when a player paid a
// draw stack without naming a card.
type MoveRecord struct {
	GameID      uuid.UUID  `json:"game_id"`
	PlayerID    uuid.UUID  `json:"player_id"`
	CardID      *int       `json:"card_id,omitempty"`
	Action      MoveAction `json:"action"`
	TurnNumber  int        `json:"turn_number"`
	ChosenColor Color      `json:"chosen_color,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MoveEvent is a committed move plus the state it produced, published for the historian.
type MoveEvent struct {
	MoveRecord
	CurrentTurn  uuid.UUID      `json:"current_turn"`
	Direction    Direction      `json:"direction"`
	ActiveColor  Color          `json:"active_color"`
	PendingDraws int            `json:"pending_draws"`
	Status       GameStatusKind `json:"status"`
	WinnerID     uuid.UUID      `json:"winner_id,omitempty"`
	Timestamp    int64          `json:"timestamp"`
}

type Statistics struct {
	GamesFinished int `json:"games_finished"`
	TurnsPlayed   int `json:"turns_played"`
	AIWins        int `json:"ai_wins"`
	HumanWins     int `json:"human_wins"`
	Draw2Count    int `json:"draw2_count"`
	Wild4Count    int `json:"wild4_count"`
}
