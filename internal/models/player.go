package models

import "github.com/google/uuid"

// PlayerKind tells the engine whether moves come from a person or the AI strategist.
type PlayerKind string

const (
	PlayerHuman    PlayerKind = "human"
	PlayerComputer PlayerKind = "computer"
)

func (k PlayerKind) Valid() bool {
	return k == PlayerHuman || k == PlayerComputer
}

type Player struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	Kind        PlayerKind `json:"kind"`

	// Score accumulates across games; the winner of a game receives the points
	// left in the other hands.
	Score int `json:"score"`

	// CreatedSeq orders players by creation, which is also the seating order.
	CreatedSeq int64 `json:"-"`
}
