// internal/game/deck.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
)

const (
	// DeckSize is the number of cards in a standard UNO deck.
	DeckSize = 108
	// HandSize is the number of cards dealt to each player.
	HandSize = 7
)

// StandardDeck builds the 108-card catalogue with ids 1..108: per color one 0,
// two each of 1-9, skip, reverse and draw2, then four wild and four wild4.
func StandardDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	add := func(color models.Color, face models.Face) {
		deck = append(deck, models.Card{
			ID:     len(deck) + 1,
			Color:  color,
			Face:   face,
			Points: cardPoints(face),
		})
	}

	for _, color := range models.Colors {
		add(color, models.NumberFace(0))
		for n := 1; n <= 9; n++ {
			add(color, models.NumberFace(n))
			add(color, models.NumberFace(n))
		}
		for _, face := range []models.Face{models.FaceSkip, models.FaceReverse, models.FaceDraw2} {
			add(color, face)
			add(color, face)
		}
	}
	for i := 0; i < 4; i++ {
		add(models.ColorWild, models.FaceWild)
	}
	for i := 0; i < 4; i++ {
		add(models.ColorWild, models.FaceWild4)
	}
	return deck
}

var catalogue = StandardDeck()

// CardByID looks a card up in the standard catalogue.
func CardByID(id int) (models.Card, bool) {
	if id < 1 || id > len(catalogue) {
		return models.Card{}, false
	}
	return catalogue[id-1], true
}

func cardPoints(face models.Face) int {
	if n, ok := face.Number(); ok {
		return n
	}
	if face.IsWild() {
		return 50
	}
	return 20
}

// lockedRand is a math/rand source shared by all games of an engine.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func defaultSeed() int64 {
	return time.Now().UnixNano()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// drawCard picks a uniformly random card still in the deck. An empty deck is
// refilled once from the discard pile, keeping the current top card.
// The card is not moved; callers relocate it.
func (e *Engine) drawCard(ctx context.Context, tx store.Tx, g *models.GameState) (models.Card, error) {
	ids, err := tx.CardsAt(ctx, g.ID, models.InDeck)
	if err != nil {
		return models.Card{}, err
	}
	if len(ids) == 0 {
		n, err := tx.RecycleDiscard(ctx, g.ID, g.TopCardID)
		if err != nil {
			return models.Card{}, fmt.Errorf("recycling discard pile: %w", err)
		}
		e.log.WithField("game_id", g.ID).WithField("recycled", n).Debug("deck empty, discard pile recycled")
		if ids, err = tx.CardsAt(ctx, g.ID, models.InDeck); err != nil {
			return models.Card{}, err
		}
		if len(ids) == 0 {
			return models.Card{}, fmt.Errorf("game %s: %w", g.ID, ErrDeckExhausted)
		}
	}

	id := ids[e.rng.Intn(len(ids))]
	card, _, err := tx.GetCard(ctx, g.ID, id)
	if err != nil {
		return models.Card{}, err
	}
	return card, nil
}

// dealTo draws one card into a player's hand.
func (e *Engine) dealTo(ctx context.Context, tx store.Tx, g *models.GameState, playerID uuid.UUID) (models.Card, error) {
	card, err := e.drawCard(ctx, tx, g)
	if err != nil {
		return models.Card{}, err
	}
	if err := tx.Relocate(ctx, g.ID, card.ID, models.InHand); err != nil {
		return models.Card{}, err
	}
	if err := tx.AddToHand(ctx, g.ID, playerID, card.ID); err != nil {
		return models.Card{}, err
	}
	return card, nil
}
