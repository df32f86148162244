// internal/database/historian.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/models"
)

// InsertMoveEvents persists a batch of published moves in one transaction and
// refreshes the activity row of every game touched.
func (db *DB) InsertMoveEvents(ctx context.Context, events []models.MoveEvent) error {
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := insertMoveEventTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("insertMoveEventTx: %w", err)
			}
		}
		return nil
	})
}

func insertMoveEventTx(ctx context.Context, tx pgx.Tx, ev models.MoveEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	at := time.UnixMilli(ev.Timestamp)

	insertQ := `
		INSERT INTO move_events (game_id, turn_number, player_id, action, payload, event_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, turn_number) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertQ, ev.GameID, ev.TurnNumber, ev.PlayerID, ev.Action, payload, at); err != nil {
		return err
	}

	status := "in_progress"
	var endTime *time.Time
	if ev.Status == models.StatusFinished {
		status = "completed"
		endTime = &at
	}
	activityQ := `
		INSERT INTO game_activity (game_id, status, last_move_at, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id) DO UPDATE
		SET last_move_at = GREATEST(game_activity.last_move_at, EXCLUDED.last_move_at),
		    status = CASE WHEN game_activity.status = 'in_progress' THEN EXCLUDED.status ELSE game_activity.status END,
		    end_time = COALESCE(game_activity.end_time, EXCLUDED.end_time)
	`
	_, err = tx.Exec(ctx, activityQ, ev.GameID, status, at, endTime)
	return err
}

// MarkAbandoned marks a game abandoned if it is still in progress. It reports
// whether the row changed.
func (db *DB) MarkAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	q := `
		UPDATE game_activity
		SET status = 'abandoned', end_time = NOW()
		WHERE game_id = $1 AND status = 'in_progress'
	`
	tag, err := db.pool.Exec(ctx, q, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to mark game %v abandoned: %w", gameID, err)
	}
	return tag.RowsAffected() > 0, nil
}
