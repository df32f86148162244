// internal/game/utils.go
package game

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

var colorRank = map[models.Color]int{
	models.ColorRed:    0,
	models.ColorGreen:  1,
	models.ColorBlue:   2,
	models.ColorYellow: 3,
	models.ColorWild:   4,
}

// sortHand orders cards by printed color, then face, then id.
func sortHand(hand []models.Card) {
	slices.SortFunc(hand, func(a, b models.Card) int {
		return cmp.Or(
			cmp.Compare(colorRank[a.Color], colorRank[b.Color]),
			cmp.Compare(a.Face, b.Face),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// MarshalEvent encodes a GameEvent, returning "{}" if encoding fails.
func MarshalEvent(ev GameEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("type", ev.Type).Warn("failed to marshal game event")
		return []byte("{}")
	}
	return data
}
