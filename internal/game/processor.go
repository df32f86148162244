// internal/game/processor.go
package game

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
)

// Everything in this file runs inside a store transaction and is the only code
// that writes game state.

func loadGame(ctx context.Context, tx store.Tx, id uuid.UUID) (*models.GameState, error) {
	g, err := tx.GetGame(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return g, err
}

func loadPlayer(ctx context.Context, tx store.Tx, id uuid.UUID) (*models.Player, error) {
	p, err := tx.GetPlayer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, err
}

func requireOngoing(g *models.GameState) error {
	switch g.Status {
	case models.StatusOngoing:
		return nil
	case models.StatusFinished:
		return fmt.Errorf("%w: %s", ErrGameFinished, g.ID)
	default:
		return fmt.Errorf("%w: game %s is %s", ErrInvalidMove, g.ID, g.Status)
	}
}

func requireSeated(g *models.GameState, playerID uuid.UUID) error {
	if !slices.Contains(g.PlayerOrder, playerID) {
		return fmt.Errorf("%w: %s is not seated in game %s", ErrPlayerNotFound, playerID, g.ID)
	}
	return nil
}

// requireTurn checks that the game accepts a move from playerID right now.
func requireTurn(g *models.GameState, playerID uuid.UUID) error {
	if err := requireOngoing(g); err != nil {
		return err
	}
	if err := requireSeated(g, playerID); err != nil {
		return err
	}
	if g.CurrentTurn != playerID {
		return fmt.Errorf("%w: waiting on %s", ErrNotPlayersTurn, g.CurrentTurn)
	}
	return nil
}

// heldCard returns the authoritative copy of a card in playerID's hand.
func heldCard(ctx context.Context, tx store.Tx, g *models.GameState, playerID uuid.UUID, cardID int) (models.Card, error) {
	hand, err := tx.Hand(ctx, g.ID, playerID)
	if err != nil {
		return models.Card{}, err
	}
	for _, c := range hand {
		if c.ID == cardID {
			return c, nil
		}
	}
	return models.Card{}, fmt.Errorf("%w: card %d", ErrCardNotInHand, cardID)
}

func topCard(ctx context.Context, tx store.Tx, g *models.GameState) (models.Card, error) {
	c, _, err := tx.GetCard(ctx, g.ID, g.TopCardID)
	if err != nil {
		return models.Card{}, fmt.Errorf("reading top card %d: %w", g.TopCardID, err)
	}
	return c, nil
}

// startGameTx seeds a new game: deck, seven cards per seat, and the first
// non-wild discard. Wilds flipped while looking for the first discard stay in
// the discard pile.
func (e *Engine) startGameTx(ctx context.Context, tx store.Tx, gameID uuid.UUID, seats []uuid.UUID) (*models.GameState, error) {
	now := e.now()
	g := &models.GameState{
		ID:          gameID,
		CurrentTurn: seats[0],
		Direction:   models.Clockwise,
		Status:      models.StatusSetup,
		PlayerOrder: seats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertGame(ctx, g); err != nil {
		return nil, err
	}
	if err := tx.InsertDeck(ctx, gameID, StandardDeck()); err != nil {
		return nil, err
	}

	for _, pid := range seats {
		for i := 0; i < HandSize; i++ {
			if _, err := e.dealTo(ctx, tx, g, pid); err != nil {
				return nil, fmt.Errorf("dealing to %s: %w", pid, err)
			}
		}
	}

	for flips := 0; g.TopCardID == 0; flips++ {
		if flips >= DeckSize {
			return nil, fmt.Errorf("no numbered or action card left to open game %s: %w", gameID, ErrDeckExhausted)
		}
		c, err := e.drawCard(ctx, tx, g)
		if err != nil {
			return nil, err
		}
		if err := tx.Relocate(ctx, gameID, c.ID, models.InDiscard); err != nil {
			return nil, err
		}
		if c.IsWild() {
			continue
		}
		g.TopCardID = c.ID
		g.ActiveColor = c.Color
	}

	g.Status = models.StatusOngoing
	if err := tx.UpdateGame(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// applyPlayTx lays card from playerID's hand and applies its effect.
func (e *Engine) applyPlayTx(ctx context.Context, tx store.Tx, g *models.GameState, playerID uuid.UUID, card models.Card, chosen models.Color) (*models.MoveRecord, error) {
	cardID := card.ID
	rec := &models.MoveRecord{
		GameID:    g.ID,
		PlayerID:  playerID,
		CardID:    &cardID,
		Action:    models.ActionPlayed,
		CreatedAt: e.now(),
	}
	if card.IsWild() {
		rec.ChosenColor = chosen
	}
	if err := tx.AppendMove(ctx, rec); err != nil {
		return nil, err
	}

	if err := tx.RemoveFromHand(ctx, g.ID, playerID, card.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %d", ErrCardNotInHand, card.ID)
		}
		return nil, err
	}
	if err := tx.Relocate(ctx, g.ID, card.ID, models.InDiscard); err != nil {
		return nil, err
	}

	active := card.Color
	if card.IsWild() {
		if err := tx.BindWildColor(ctx, g.ID, card.ID, chosen); err != nil {
			return nil, err
		}
		active = chosen
	}

	eff := ResolveEffect(card, g.PendingDraws)
	if eff.FlipDirection {
		g.Direction = g.Direction.Flip()
	}
	next, err := NextPlayer(g.PlayerOrder, playerID, g.Direction, eff.SkipCount)
	if err != nil {
		return nil, err
	}

	g.TopCardID = card.ID
	g.CurrentTurn = next
	g.ActiveColor = active
	g.PendingDraws = eff.PendingDraws

	hand, err := tx.Hand(ctx, g.ID, playerID)
	if err != nil {
		return nil, err
	}
	if len(hand) == 0 {
		if err := finishTx(ctx, tx, g, playerID); err != nil {
			return nil, err
		}
	}

	g.UpdatedAt = e.now()
	if err := tx.UpdateGame(ctx, g); err != nil {
		return nil, err
	}
	return rec, nil
}

// applyPassTx pays any pending stack into playerID's hand and advances the turn.
// card, when set, is the card the player drew before passing.
func (e *Engine) applyPassTx(ctx context.Context, tx store.Tx, g *models.GameState, playerID uuid.UUID, card *models.Card) (*models.MoveRecord, error) {
	rec := &models.MoveRecord{
		GameID:    g.ID,
		PlayerID:  playerID,
		Action:    models.ActionDrawnAndPassed,
		CreatedAt: e.now(),
	}
	if card != nil {
		id := card.ID
		rec.CardID = &id
	}
	if err := tx.AppendMove(ctx, rec); err != nil {
		return nil, err
	}

	for i := 0; i < g.PendingDraws; i++ {
		if _, err := e.dealTo(ctx, tx, g, playerID); err != nil {
			return nil, fmt.Errorf("paying draw stack of %d: %w", g.PendingDraws, err)
		}
	}

	next, err := NextPlayer(g.PlayerOrder, playerID, g.Direction, 0)
	if err != nil {
		return nil, err
	}
	g.CurrentTurn = next
	g.PendingDraws = 0
	g.UpdatedAt = e.now()
	if err := tx.UpdateGame(ctx, g); err != nil {
		return nil, err
	}
	return rec, nil
}

// finishTx marks g finished and credits the winner with the points left in
// every other hand. The caller persists g.
func finishTx(ctx context.Context, tx store.Tx, g *models.GameState, winnerID uuid.UUID) error {
	g.Status = models.StatusFinished
	g.WinnerID = winnerID

	points := 0
	for _, pid := range g.PlayerOrder {
		if pid == winnerID {
			continue
		}
		hand, err := tx.Hand(ctx, g.ID, pid)
		if err != nil {
			return err
		}
		for _, c := range hand {
			points += c.Points
		}
	}
	if points == 0 {
		return nil
	}
	return tx.AddPlayerScore(ctx, winnerID, points)
}
