// internal/database/cards.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/models"
)

func cardKey(gameID uuid.UUID, cardID int) string {
	return fmt.Sprintf("card %d in game %s", cardID, gameID)
}

func (t *pgTx) InsertDeck(ctx context.Context, gameID uuid.UUID, cards []models.Card) error {
	rows := make([][]any, len(cards))
	for i, c := range cards {
		rows[i] = []any{gameID, c.ID, c.Color, c.Face, c.Points, models.InDeck}
	}
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"game_cards"},
		[]string{"game_id", "card_id", "color", "face", "points", "location"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

func (t *pgTx) GetCard(ctx context.Context, gameID uuid.UUID, cardID int) (models.Card, models.Location, error) {
	var (
		c      models.Card
		chosen *models.Color
		loc    models.Location
	)
	q := `
	SELECT card_id, color, face, points, chosen_color, location
	FROM game_cards
	WHERE game_id = $1 AND card_id = $2
	`
	err := t.tx.QueryRow(ctx, q, gameID, cardID).Scan(&c.ID, &c.Color, &c.Face, &c.Points, &chosen, &loc)
	if err != nil {
		return models.Card{}, "", notFound(err, cardKey(gameID, cardID))
	}
	if chosen != nil {
		c.Chosen = *chosen
	}
	return c, loc, nil
}

func (t *pgTx) CardsAt(ctx context.Context, gameID uuid.UUID, loc models.Location) ([]int, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT card_id FROM game_cards WHERE game_id = $1 AND location = $2 ORDER BY card_id`,
		gameID, loc,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (t *pgTx) Relocate(ctx context.Context, gameID uuid.UUID, cardID int, loc models.Location) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE game_cards SET location = $3 WHERE game_id = $1 AND card_id = $2`,
		gameID, cardID, loc,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, cardKey(gameID, cardID))
	}
	return nil
}

func (t *pgTx) BindWildColor(ctx context.Context, gameID uuid.UUID, cardID int, color models.Color) error {
	c, _, err := t.GetCard(ctx, gameID, cardID)
	if err != nil {
		return err
	}
	if err := c.BindColor(color); err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`UPDATE game_cards SET chosen_color = $3 WHERE game_id = $1 AND card_id = $2`,
		gameID, cardID, c.Chosen,
	)
	return err
}

func (t *pgTx) RecycleDiscard(ctx context.Context, gameID uuid.UUID, keep int) (int, error) {
	q := `
		UPDATE game_cards
		SET location = 'in_deck', chosen_color = NULL
		WHERE game_id = $1 AND location = 'in_discard' AND card_id <> $2
	`
	tag, err := t.tx.Exec(ctx, q, gameID, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) CountLocations(ctx context.Context, gameID uuid.UUID) (map[models.Location]int, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT location, COUNT(*) FROM game_cards WHERE game_id = $1 GROUP BY location`,
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Location]int, 3)
	for rows.Next() {
		var (
			loc models.Location
			n   int
		)
		if err := rows.Scan(&loc, &n); err != nil {
			return nil, err
		}
		counts[loc] = n
	}
	return counts, rows.Err()
}

func (t *pgTx) AddToHand(ctx context.Context, gameID, playerID uuid.UUID, cardID int) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO hands (game_id, card_id, player_id) VALUES ($1, $2, $3)`,
		gameID, cardID, playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to add %s to hand: %w", cardKey(gameID, cardID), err)
	}
	return nil
}

func (t *pgTx) RemoveFromHand(ctx context.Context, gameID, playerID uuid.UUID, cardID int) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM hands WHERE game_id = $1 AND player_id = $2 AND card_id = $3`,
		gameID, playerID, cardID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, cardKey(gameID, cardID)+" in hand of "+playerID.String())
	}
	return nil
}

func (t *pgTx) Hand(ctx context.Context, gameID, playerID uuid.UUID) ([]models.Card, error) {
	q := `
	SELECT c.card_id, c.color, c.face, c.points, c.chosen_color
	FROM hands h
	JOIN game_cards c ON c.game_id = h.game_id AND c.card_id = h.card_id
	WHERE h.game_id = $1 AND h.player_id = $2
	ORDER BY h.seq
	`
	rows, err := t.tx.Query(ctx, q, gameID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hand := []models.Card{}
	for rows.Next() {
		var (
			c      models.Card
			chosen *models.Color
		)
		if err := rows.Scan(&c.ID, &c.Color, &c.Face, &c.Points, &chosen); err != nil {
			return nil, err
		}
		if chosen != nil {
			c.Chosen = *chosen
		}
		hand = append(hand, c)
	}
	return hand, rows.Err()
}

func (t *pgTx) HandCounts(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int, error) {
	var order []uuid.UUID
	if err := t.tx.QueryRow(ctx, `SELECT player_order FROM games WHERE id = $1`, gameID).Scan(&order); err != nil {
		return nil, notFound(err, "game "+gameID.String())
	}
	counts := make(map[uuid.UUID]int, len(order))
	for _, pid := range order {
		counts[pid] = 0
	}

	rows, err := t.tx.Query(ctx,
		`SELECT player_id, COUNT(*) FROM hands WHERE game_id = $1 GROUP BY player_id`,
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pid uuid.UUID
			n   int
		)
		if err := rows.Scan(&pid, &n); err != nil {
			return nil, err
		}
		counts[pid] = n
	}
	return counts, rows.Err()
}
