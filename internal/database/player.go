// internal/database/player.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

func (t *pgTx) InsertPlayer(ctx context.Context, p *models.Player) error {
	q := `INSERT INTO players (id, display_name, kind)
	      VALUES ($1, $2, $3)
	      RETURNING created_seq`
	if err := t.tx.QueryRow(ctx, q, p.ID, p.DisplayName, p.Kind).Scan(&p.CreatedSeq); err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (t *pgTx) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	q := `
	SELECT id, display_name, kind, score, created_seq
	FROM players
	WHERE id = $1
	`
	err := t.tx.QueryRow(ctx, q, id).Scan(&p.ID, &p.DisplayName, &p.Kind, &p.Score, &p.CreatedSeq)
	if err != nil {
		return nil, notFound(err, "player "+id.String())
	}
	return &p, nil
}

func (t *pgTx) ListPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, display_name, kind, score, created_seq
		FROM players
		ORDER BY created_seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Kind, &p.Score, &p.CreatedSeq); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (t *pgTx) AddPlayerScore(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE players SET score = score + $1 WHERE id = $2`, delta, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "player "+id.String())
	}
	return nil
}
