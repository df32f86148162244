// internal/game/effects.go
package game

import "github.com/jason-s-yu/uno/internal/models"

// Effect is what playing a card does to the turn order and the draw stack.
type Effect struct {
	PendingDraws  int
	SkipCount     int
	FlipDirection bool
}

// ResolveEffect computes the state changes of playing c on a stack of pending
// draws. Penalty cards add to the stack and skip the next seat; every other
// card leaves the stack as is, since only penalty cards are legal while a
// stack is owed.
func ResolveEffect(c models.Card, pending int) Effect {
	eff := Effect{PendingDraws: pending}
	switch c.Face {
	case models.FaceSkip:
		eff.SkipCount = 1
	case models.FaceReverse:
		eff.FlipDirection = true
	case models.FaceDraw2:
		eff.PendingDraws += 2
		eff.SkipCount = 1
	case models.FaceWild4:
		eff.PendingDraws += 4
		eff.SkipCount = 1
	}
	return eff
}
