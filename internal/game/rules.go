// internal/game/rules.go
package game

import "github.com/jason-s-yu/uno/internal/models"

// IsLegal reports whether played may be laid on top while pending draws are
// owed. With a pending stack only a penalty card of the same kind continues
// it. Otherwise wilds always match, and any card matches on color or face.
// The top card's color is its chosen color when it is a bound wild.
func IsLegal(played, top models.Card, pending int) bool {
	if pending > 0 {
		return played.Face.IsPenalty() && played.Face == top.Face
	}
	if played.IsWild() {
		return true
	}
	return played.Color == top.SuitColor() || played.Face == top.Face
}

// LegalMoves filters hand down to the cards IsLegal accepts, keeping hand order.
func LegalMoves(hand []models.Card, top models.Card, pending int) []models.Card {
	var legal []models.Card
	for _, c := range hand {
		if IsLegal(c, top, pending) {
			legal = append(legal, c)
		}
	}
	return legal
}
