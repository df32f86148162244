// Package store defines the state store the engine runs against. A Store is
// opened by the caller, injected into the engine and closed when done.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store runs units of work. Everything written inside one InTx callback is
// committed together, or not at all when the callback returns an error.
// View callbacks only ever observe committed state.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// Tx is the set of primitives available inside a unit of work.
type Tx interface {
	InsertPlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	AddPlayerScore(ctx context.Context, id uuid.UUID, delta int) error

	InsertGame(ctx context.Context, g *models.GameState) error
	// GetGame returns the game row; implementations that support it lock the
	// row for the rest of the transaction.
	GetGame(ctx context.Context, id uuid.UUID) (*models.GameState, error)
	UpdateGame(ctx context.Context, g *models.GameState) error

	InsertDeck(ctx context.Context, gameID uuid.UUID, cards []models.Card) error
	GetCard(ctx context.Context, gameID uuid.UUID, cardID int) (models.Card, models.Location, error)
	CardsAt(ctx context.Context, gameID uuid.UUID, loc models.Location) ([]int, error)
	Relocate(ctx context.Context, gameID uuid.UUID, cardID int, loc models.Location) error
	BindWildColor(ctx context.Context, gameID uuid.UUID, cardID int, color models.Color) error
	// RecycleDiscard moves every discarded card except keep back into the deck
	// and clears chosen wild colors. It returns the number of recycled cards.
	RecycleDiscard(ctx context.Context, gameID uuid.UUID, keep int) (int, error)
	CountLocations(ctx context.Context, gameID uuid.UUID) (map[models.Location]int, error)

	AddToHand(ctx context.Context, gameID, playerID uuid.UUID, cardID int) error
	RemoveFromHand(ctx context.Context, gameID, playerID uuid.UUID, cardID int) error
	Hand(ctx context.Context, gameID, playerID uuid.UUID) ([]models.Card, error)
	HandCounts(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int, error)

	// AppendMove stores rec with TurnNumber set to the game's prior move count + 1.
	AppendMove(ctx context.Context, rec *models.MoveRecord) error
	CountMoves(ctx context.Context, gameID uuid.UUID) (int, error)
	Statistics(ctx context.Context) (models.Statistics, error)
}
