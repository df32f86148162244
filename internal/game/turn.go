// internal/game/turn.go
package game

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// NextPlayer walks 1+skipCount seats from current in the given direction,
// wrapping around the seat order.
func NextPlayer(order []uuid.UUID, current uuid.UUID, dir models.Direction, skipCount int) (uuid.UUID, error) {
	n := len(order)
	if n == 0 {
		return uuid.Nil, fmt.Errorf("%w: empty seat order", ErrPlayerNotFound)
	}
	idx := slices.Index(order, current)
	if idx < 0 {
		return uuid.Nil, fmt.Errorf("%w: %s is not seated", ErrPlayerNotFound, current)
	}

	steps := 1 + skipCount
	if dir == models.Counterclockwise {
		steps = -steps
	}
	next := ((idx+steps)%n + n) % n
	return order[next], nil
}
