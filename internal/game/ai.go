// internal/game/ai.go
package game

import "github.com/jason-s-yu/uno/internal/models"

// Decision is a card the computer wants to play and, for wilds, the color it names.
type Decision struct {
	Card  models.Card  `json:"card"`
	Color models.Color `json:"chosen_color,omitempty"`
}

// Decide picks the highest-scoring legal card. Ties keep the earliest card in
// legal. It returns false when nothing is playable and the player must draw.
// hand is only consulted to name a color for wilds.
func Decide(legal, hand []models.Card) (Decision, bool) {
	if len(legal) == 0 {
		return Decision{}, false
	}
	best := legal[0]
	bestScore := scoreCard(best)
	for _, c := range legal[1:] {
		if s := scoreCard(c); s > bestScore {
			best, bestScore = c, s
		}
	}

	d := Decision{Card: best}
	if best.IsWild() {
		d.Color = preferredColor(hand)
	}
	return d, true
}

func scoreCard(c models.Card) int {
	switch c.Face {
	case models.FaceWild4:
		return 100
	case models.FaceDraw2:
		return 80
	case models.FaceSkip, models.FaceReverse:
		return 70
	case models.FaceWild:
		return 60
	}
	n, _ := c.Face.Number()
	return n
}

// preferredColor is the most frequent non-wild color in hand, first seen on
// ties, red when the hand holds only wilds.
func preferredColor(hand []models.Card) models.Color {
	counts := make(map[models.Color]int, 4)
	var seen []models.Color
	for _, c := range hand {
		if c.IsWild() {
			continue
		}
		if counts[c.Color] == 0 {
			seen = append(seen, c.Color)
		}
		counts[c.Color]++
	}

	best, bestCount := models.ColorRed, 0
	for _, color := range seen {
		if counts[color] > bestCount {
			best, bestCount = color, counts[color]
		}
	}
	return best
}
