// internal/database/game.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/models"
)

var errNoRows = pgx.ErrNoRows

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (t *pgTx) InsertGame(ctx context.Context, g *models.GameState) error {
	q := `
		INSERT INTO games (
			id, current_turn, direction, top_card_id, active_color,
			pending_draws, status, winner_id, player_order, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := t.tx.Exec(ctx, q,
		g.ID, g.CurrentTurn, g.Direction, g.TopCardID, g.ActiveColor,
		g.PendingDraws, g.Status, nullUUID(g.WinnerID), g.PlayerOrder, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// GetGame locks the row for the rest of a write transaction.
func (t *pgTx) GetGame(ctx context.Context, id uuid.UUID) (*models.GameState, error) {
	q := `
	SELECT id, current_turn, direction, top_card_id, active_color,
	       pending_draws, status, winner_id, player_order, created_at, updated_at
	FROM games
	WHERE id = $1
	`
	if !t.readOnly {
		q += " FOR UPDATE"
	}

	var (
		g      models.GameState
		winner *uuid.UUID
	)
	err := t.tx.QueryRow(ctx, q, id).Scan(
		&g.ID, &g.CurrentTurn, &g.Direction, &g.TopCardID, &g.ActiveColor,
		&g.PendingDraws, &g.Status, &winner, &g.PlayerOrder, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "game "+id.String())
	}
	if winner != nil {
		g.WinnerID = *winner
	}
	return &g, nil
}

func (t *pgTx) UpdateGame(ctx context.Context, g *models.GameState) error {
	q := `
		UPDATE games
		SET current_turn = $2, direction = $3, top_card_id = $4, active_color = $5,
		    pending_draws = $6, status = $7, winner_id = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, q,
		g.ID, g.CurrentTurn, g.Direction, g.TopCardID, g.ActiveColor,
		g.PendingDraws, g.Status, nullUUID(g.WinnerID), g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "game "+g.ID.String())
	}
	return nil
}

func (t *pgTx) AppendMove(ctx context.Context, rec *models.MoveRecord) error {
	var chosen *models.Color
	if rec.ChosenColor != "" {
		chosen = &rec.ChosenColor
	}
	q := `
		INSERT INTO moves (game_id, player_id, card_id, action, chosen_color, created_at, turn_number)
		VALUES ($1, $2, $3, $4, $5, $6,
		        (SELECT COUNT(*) + 1 FROM moves WHERE game_id = $1))
		RETURNING turn_number
	`
	err := t.tx.QueryRow(ctx, q,
		rec.GameID, rec.PlayerID, rec.CardID, rec.Action, chosen, rec.CreatedAt,
	).Scan(&rec.TurnNumber)
	if err != nil {
		return fmt.Errorf("failed to append move: %w", err)
	}
	return nil
}

func (t *pgTx) CountMoves(ctx context.Context, gameID uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM moves WHERE game_id = $1`, gameID).Scan(&n)
	return n, err
}

func (t *pgTx) Statistics(ctx context.Context) (models.Statistics, error) {
	q := `
	SELECT
		(SELECT COUNT(*) FROM games WHERE status = 'finished'),
		(SELECT COUNT(*) FROM moves),
		(SELECT COUNT(*) FROM games g JOIN players p ON p.id = g.winner_id
		  WHERE g.status = 'finished' AND p.kind = 'computer'),
		(SELECT COUNT(*) FROM games g JOIN players p ON p.id = g.winner_id
		  WHERE g.status = 'finished' AND p.kind = 'human'),
		(SELECT COUNT(*) FROM moves m JOIN game_cards c ON c.game_id = m.game_id AND c.card_id = m.card_id
		  WHERE m.action = 'played' AND c.face = 'draw2'),
		(SELECT COUNT(*) FROM moves m JOIN game_cards c ON c.game_id = m.game_id AND c.card_id = m.card_id
		  WHERE m.action = 'played' AND c.face = 'wild4')
	`
	var s models.Statistics
	err := t.tx.QueryRow(ctx, q).Scan(
		&s.GamesFinished, &s.TurnsPlayed, &s.AIWins, &s.HumanWins, &s.Draw2Count, &s.Wild4Count,
	)
	return s, err
}
