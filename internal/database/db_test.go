package database

import (
	"context"
	"io"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by UNO_TEST_DATABASE_URL and skips
// the test when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("UNO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("UNO_TEST_DATABASE_URL not set")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := New(context.Background(), url, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(embedMigrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"migrations/00001_create_game_tables.sql",
		"migrations/00002_create_historian_tables.sql",
	}, files)
}

func TestNullUUID(t *testing.T) {
	assert.Nil(t, nullUUID(uuid.Nil))
	id := uuid.New()
	require.NotNil(t, nullUUID(id))
	assert.Equal(t, id, *nullUUID(id))
}

func seed(t *testing.T, db *DB) (gameID, playerID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	p := &models.Player{ID: uuid.New(), DisplayName: "You", Kind: models.PlayerHuman}
	gameID = uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	err := db.InTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertPlayer(ctx, p); err != nil {
			return err
		}
		g := &models.GameState{
			ID: gameID, CurrentTurn: p.ID, Direction: models.Clockwise, Status: models.StatusSetup,
			PlayerOrder: []uuid.UUID{p.ID}, CreatedAt: now, UpdatedAt: now,
		}
		if err := tx.InsertGame(ctx, g); err != nil {
			return err
		}
		return tx.InsertDeck(ctx, gameID, []models.Card{
			{ID: 1, Color: models.ColorRed, Face: "5", Points: 5},
			{ID: 2, Color: models.ColorWild, Face: models.FaceWild4, Points: 50},
			{ID: 3, Color: models.ColorBlue, Face: models.FaceSkip, Points: 20},
		})
	})
	require.NoError(t, err)
	return gameID, p.ID
}

func TestPostgresRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	gameID, playerID := seed(t, db)

	err := db.InTx(ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{playerID}, g.PlayerOrder)
		assert.Equal(t, uuid.Nil, g.WinnerID)

		require.NoError(t, tx.Relocate(ctx, gameID, 1, models.InHand))
		require.NoError(t, tx.AddToHand(ctx, gameID, playerID, 1))
		require.NoError(t, tx.Relocate(ctx, gameID, 2, models.InDiscard))
		require.NoError(t, tx.BindWildColor(ctx, gameID, 2, models.ColorGreen))

		rec := &models.MoveRecord{GameID: gameID, PlayerID: playerID, Action: models.ActionDrawnAndPassed, CreatedAt: time.Now()}
		require.NoError(t, tx.AppendMove(ctx, rec))
		assert.Equal(t, 1, rec.TurnNumber)

		g.Status = models.StatusFinished
		g.WinnerID = playerID
		return tx.UpdateGame(ctx, g)
	})
	require.NoError(t, err)

	err = db.View(ctx, func(tx store.Tx) error {
		hand, err := tx.Hand(ctx, gameID, playerID)
		require.NoError(t, err)
		require.Len(t, hand, 1)
		assert.Equal(t, 1, hand[0].ID)

		wild, loc, err := tx.GetCard(ctx, gameID, 2)
		require.NoError(t, err)
		assert.Equal(t, models.InDiscard, loc)
		assert.Equal(t, models.ColorGreen, wild.SuitColor())

		counts, err := tx.CountLocations(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, map[models.Location]int{models.InDeck: 1, models.InHand: 1, models.InDiscard: 1}, counts)

		g, err := tx.GetGame(ctx, gameID)
		require.NoError(t, err)
		assert.Equal(t, playerID, g.WinnerID)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	gameID, playerID := seed(t, db)

	err := db.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Relocate(ctx, gameID, 1, models.InHand))
		require.NoError(t, tx.AddToHand(ctx, gameID, playerID, 1))
		return tx.RemoveFromHand(ctx, gameID, playerID, 3)
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = db.View(ctx, func(tx store.Tx) error {
		_, loc, err := tx.GetCard(ctx, gameID, 1)
		require.NoError(t, err)
		assert.Equal(t, models.InDeck, loc)

		_, err = tx.GetGame(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
