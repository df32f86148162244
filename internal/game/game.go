// internal/game/game.go
package game

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
)

// MovePublisher receives every committed move. Failures are logged and never
// undo the move.
type MovePublisher interface {
	PublishMove(ctx context.Context, ev models.MoveEvent) error
}

// NewPlayer describes a player to register.
type NewPlayer struct {
	Name string            `json:"name"`
	Kind models.PlayerKind `json:"kind"`
}

// Engine is the UNO rules engine. All game data lives in the injected store;
// the engine only keeps per-game locks and in-flight computer decisions.
type Engine struct {
	store      store.Store
	games      *GameStore
	log        logrus.FieldLogger
	rng        *lockedRand
	publisher  MovePublisher
	thinkDelay time.Duration
	observer   func(gameID uuid.UUID)
	now        func() time.Time
}

type Option func(*Engine)

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithPublisher(p MovePublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithSeed fixes the seed of the draw order.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = newLockedRand(seed) }
}

// WithThinkDelay makes every computer decision wait d before it resolves.
func WithThinkDelay(d time.Duration) Option {
	return func(e *Engine) { e.thinkDelay = d }
}

// WithStateObserver registers fn to be called after every committed change to a game.
func WithStateObserver(fn func(gameID uuid.UUID)) Option {
	return func(e *Engine) { e.observer = fn }
}

func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		games: NewGameStore(),
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newLockedRand(defaultSeed())
	}
	return e
}

// CreatePlayers registers players and returns their ids in input order.
func (e *Engine) CreatePlayers(ctx context.Context, players []NewPlayer) ([]uuid.UUID, error) {
	rows := make([]*models.Player, 0, len(players))
	for _, np := range players {
		name := strings.TrimSpace(np.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty display name", ErrInvalidPlayer)
		}
		if !np.Kind.Valid() {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPlayer, np.Kind)
		}
		rows = append(rows, &models.Player{ID: uuid.New(), DisplayName: name, Kind: np.Kind})
	}

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		for _, p := range rows {
			if err := tx.InsertPlayer(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	ids := make([]uuid.UUID, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	e.log.WithField("count", len(ids)).Info("players created")
	return ids, nil
}

// SetupSession registers one human called "You" and aiOpponents computer players.
func (e *Engine) SetupSession(ctx context.Context, aiOpponents int) ([]uuid.UUID, error) {
	if aiOpponents < 1 {
		return nil, ErrNotEnoughPlayers
	}
	players := []NewPlayer{{Name: "You", Kind: models.PlayerHuman}}
	for i := 1; i <= aiOpponents; i++ {
		players = append(players, NewPlayer{Name: fmt.Sprintf("AI Bot %d", i), Kind: models.PlayerComputer})
	}
	return e.CreatePlayers(ctx, players)
}

func (e *Engine) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		players, err = tx.ListPlayers(ctx)
		return err
	})
	return players, classify(err)
}

func (e *Engine) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p *models.Player
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		p, err = loadPlayer(ctx, tx, id)
		return err
	})
	return p, classify(err)
}

// StartGame deals a new game for playerIDs. Seats follow player creation order
// and the first seat opens, clockwise.
func (e *Engine) StartGame(ctx context.Context, playerIDs []uuid.UUID) (uuid.UUID, error) {
	if len(playerIDs) < 2 {
		return uuid.Nil, ErrNotEnoughPlayers
	}
	if HandSize*len(playerIDs)+1 > DeckSize {
		return uuid.Nil, fmt.Errorf("%w: %d players", ErrTooManyPlayers, len(playerIDs))
	}
	seen := make(map[uuid.UUID]bool, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			return uuid.Nil, fmt.Errorf("%w: %s listed twice", ErrInvalidPlayer, id)
		}
		seen[id] = true
	}

	gameID := uuid.New()
	unlock := e.games.Lock(gameID)
	defer unlock()

	var g *models.GameState
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		players := make([]*models.Player, 0, len(playerIDs))
		for _, id := range playerIDs {
			p, err := loadPlayer(ctx, tx, id)
			if err != nil {
				return err
			}
			players = append(players, p)
		}
		slices.SortFunc(players, func(a, b *models.Player) int {
			return cmp.Compare(a.CreatedSeq, b.CreatedSeq)
		})
		seats := make([]uuid.UUID, len(players))
		for i, p := range players {
			seats[i] = p.ID
		}

		var err error
		g, err = e.startGameTx(ctx, tx, gameID, seats)
		return err
	})
	if err != nil {
		err = classify(err)
		e.games.Invalidate(gameID)
		e.log.WithError(err).Error("failed to start game, transaction rolled back")
		return uuid.Nil, err
	}

	e.log.WithFields(logrus.Fields{
		"game_id":  gameID,
		"players":  len(g.PlayerOrder),
		"top_card": g.TopCardID,
	}).Info("game started")
	e.notify(gameID)
	return gameID, nil
}

func (e *Engine) GetStatus(ctx context.Context, gameID uuid.UUID) (*models.GameStatus, error) {
	var status *models.GameStatus
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		status, err = statusOf(ctx, tx, gameID)
		return err
	})
	return status, classify(err)
}

func statusOf(ctx context.Context, tx store.Tx, gameID uuid.UUID) (*models.GameStatus, error) {
	g, err := loadGame(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	status := &models.GameStatus{GameState: *g}
	if g.TopCardID != 0 {
		if status.TopCard, err = topCard(ctx, tx, g); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// GetHand returns a player's cards ordered by color, face and id.
func (e *Engine) GetHand(ctx context.Context, gameID, playerID uuid.UUID) ([]models.Card, error) {
	var hand []models.Card
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		hand, err = handOf(ctx, tx, gameID, playerID)
		return err
	})
	return hand, classify(err)
}

func handOf(ctx context.Context, tx store.Tx, gameID, playerID uuid.UUID) ([]models.Card, error) {
	g, err := loadGame(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	if err := requireSeated(g, playerID); err != nil {
		return nil, err
	}
	hand, err := tx.Hand(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	sortHand(hand)
	return hand, nil
}

// GetHandCounts returns the hand size of every seated player.
func (e *Engine) GetHandCounts(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]int, error) {
	var counts map[uuid.UUID]int
	err := e.store.View(ctx, func(tx store.Tx) error {
		if _, err := loadGame(ctx, tx, gameID); err != nil {
			return err
		}
		var err error
		counts, err = tx.HandCounts(ctx, gameID)
		return err
	})
	return counts, classify(err)
}

// DeckCounts returns how many of the game's cards sit in each location.
func (e *Engine) DeckCounts(ctx context.Context, gameID uuid.UUID) (map[models.Location]int, error) {
	var counts map[models.Location]int
	err := e.store.View(ctx, func(tx store.Tx) error {
		if _, err := loadGame(ctx, tx, gameID); err != nil {
			return err
		}
		var err error
		counts, err = tx.CountLocations(ctx, gameID)
		return err
	})
	return counts, classify(err)
}

func (e *Engine) ValidateMove(card, top models.Card, pendingDraws int) bool {
	return IsLegal(card, top, pendingDraws)
}

func (e *Engine) DecideAIMove(legal, hand []models.Card) (models.Card, models.Color, bool) {
	d, ok := Decide(legal, hand)
	return d.Card, d.Color, ok
}

// ProcessMove applies one move by playerID. A played card must be in the
// player's hand and legal on the current top card; nothing is written
// otherwise. For drawn_and_passed, card is the card drawn beforehand, if any.
func (e *Engine) ProcessMove(ctx context.Context, gameID, playerID uuid.UUID, card *models.Card, action models.MoveAction, chosen models.Color) error {
	unlock := e.games.Lock(gameID)
	defer unlock()
	_, err := e.processMoveLocked(ctx, gameID, playerID, card, action, chosen)
	return err
}

func (e *Engine) processMoveLocked(ctx context.Context, gameID, playerID uuid.UUID, card *models.Card, action models.MoveAction, chosen models.Color) (*models.GameState, error) {
	return e.commitMove(ctx, gameID, playerID, func(tx store.Tx) (*models.GameState, *models.MoveRecord, error) {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireTurn(g, playerID); err != nil {
			return nil, nil, err
		}

		switch action {
		case models.ActionPlayed:
			if card == nil {
				return nil, nil, fmt.Errorf("%w: no card given", ErrInvalidMove)
			}
			held, err := heldCard(ctx, tx, g, playerID, card.ID)
			if err != nil {
				return nil, nil, err
			}
			top, err := topCard(ctx, tx, g)
			if err != nil {
				return nil, nil, err
			}
			if !IsLegal(held, top, g.PendingDraws) {
				return nil, nil, fmt.Errorf("%w: %s on %s with %d pending", ErrInvalidMove, held, top, g.PendingDraws)
			}
			color := chosen
			if held.IsWild() && !color.IsConcrete() {
				e.log.WithFields(logrus.Fields{
					"game_id": gameID,
					"card_id": held.ID,
					"color":   chosen,
				}).Warn("wild played without a valid color, defaulting to red")
				color = models.ColorRed
			}
			rec, err := e.applyPlayTx(ctx, tx, g, playerID, held, color)
			return g, rec, err

		case models.ActionDrawnAndPassed:
			var drawn *models.Card
			if card != nil {
				held, err := heldCard(ctx, tx, g, playerID, card.ID)
				if err != nil {
					return nil, nil, err
				}
				drawn = &held
			}
			rec, err := e.applyPassTx(ctx, tx, g, playerID, drawn)
			return g, rec, err
		}
		return nil, nil, fmt.Errorf("%w: unknown action %q", ErrInvalidMove, action)
	})
}

// DrawCard draws one card into the hand of the player whose turn it is. It is
// not available while a draw stack is pending; that is paid by passing.
func (e *Engine) DrawCard(ctx context.Context, gameID, playerID uuid.UUID) (models.Card, error) {
	unlock := e.games.Lock(gameID)
	defer unlock()

	var card models.Card
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := requireTurn(g, playerID); err != nil {
			return err
		}
		if g.PendingDraws > 0 {
			return fmt.Errorf("%w: %d cards pending, pass to pay them", ErrInvalidMove, g.PendingDraws)
		}
		card, err = e.dealTo(ctx, tx, g, playerID)
		return err
	})
	if err != nil {
		return models.Card{}, e.logFailure(gameID, playerID, classify(err))
	}
	e.log.WithFields(logrus.Fields{"game_id": gameID, "player_id": playerID}).Debug("card drawn")
	e.notify(gameID)
	return card, nil
}

// drawAndPassLocked draws one card and passes in a single transaction.
func (e *Engine) drawAndPassLocked(ctx context.Context, gameID, playerID uuid.UUID) (*models.Card, error) {
	var drawn models.Card
	_, err := e.commitMove(ctx, gameID, playerID, func(tx store.Tx) (*models.GameState, *models.MoveRecord, error) {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireTurn(g, playerID); err != nil {
			return nil, nil, err
		}
		if g.PendingDraws == 0 {
			if drawn, err = e.dealTo(ctx, tx, g, playerID); err != nil {
				return nil, nil, err
			}
		}
		var card *models.Card
		if drawn.ID != 0 {
			card = &drawn
		}
		rec, err := e.applyPassTx(ctx, tx, g, playerID, card)
		return g, rec, err
	})
	if err != nil || drawn.ID == 0 {
		return nil, err
	}
	return &drawn, nil
}

// EndGame marks a game finished with winnerID and credits the winner. Ending a
// game again with the same winner is a no-op.
func (e *Engine) EndGame(ctx context.Context, gameID, winnerID uuid.UUID) error {
	unlock := e.games.Lock(gameID)
	defer unlock()

	already := false
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Status == models.StatusFinished {
			if g.WinnerID == winnerID {
				already = true
				return nil
			}
			return fmt.Errorf("%w: won by %s", ErrGameFinished, g.WinnerID)
		}
		if err := requireSeated(g, winnerID); err != nil {
			return err
		}
		if err := finishTx(ctx, tx, g, winnerID); err != nil {
			return err
		}
		g.UpdatedAt = e.now()
		return tx.UpdateGame(ctx, g)
	})
	if err != nil {
		return e.logFailure(gameID, winnerID, classify(err))
	}
	if already {
		return nil
	}

	e.games.Invalidate(gameID)
	e.log.WithFields(logrus.Fields{"game_id": gameID, "winner_id": winnerID}).Info("game ended")
	e.notify(gameID)
	return nil
}

// AbandonGame cancels every computer decision in flight for a game and makes
// any decision started before the call inapplicable.
func (e *Engine) AbandonGame(gameID uuid.UUID) {
	e.games.Invalidate(gameID)
	e.log.WithField("game_id", gameID).Info("game abandoned")
}

func (e *Engine) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		stats, err = tx.Statistics(ctx)
		return err
	})
	return stats, classify(err)
}

// commitMove runs fn in one transaction. Once it has committed the move is
// published and observers are notified.
func (e *Engine) commitMove(ctx context.Context, gameID, playerID uuid.UUID, fn func(tx store.Tx) (*models.GameState, *models.MoveRecord, error)) (*models.GameState, error) {
	var (
		state *models.GameState
		rec   *models.MoveRecord
	)
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		s, r, err := fn(tx)
		if err != nil {
			return err
		}
		state, rec = s, r
		return nil
	})
	if err != nil {
		return nil, e.logFailure(gameID, playerID, classify(err))
	}

	entry := e.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": rec.PlayerID,
		"action":    rec.Action,
		"turn":      rec.TurnNumber,
	})
	if rec.CardID != nil {
		entry = entry.WithField("card_id", *rec.CardID)
	}
	entry.Debug("move applied")

	if state.Status == models.StatusFinished {
		e.games.Invalidate(gameID)
		e.log.WithFields(logrus.Fields{"game_id": gameID, "winner_id": state.WinnerID}).Info("game finished")
	}
	e.publish(ctx, state, rec)
	e.notify(gameID)
	return state, nil
}

func (e *Engine) logFailure(gameID, playerID uuid.UUID, err error) error {
	e.retireIfGone(gameID, err)
	entry := e.log.WithError(err).WithField("game_id", gameID)
	if playerID != uuid.Nil {
		entry = entry.WithField("player_id", playerID)
	}
	if errors.Is(err, ErrTransactionFailure) || errors.Is(err, ErrDeckExhausted) {
		entry.Error("operation rolled back")
	} else {
		entry.Debug("operation rejected")
	}
	return err
}

func (e *Engine) publish(ctx context.Context, state *models.GameState, rec *models.MoveRecord) {
	if e.publisher == nil {
		return
	}
	ev := models.MoveEvent{
		MoveRecord:   *rec,
		CurrentTurn:  state.CurrentTurn,
		Direction:    state.Direction,
		ActiveColor:  state.ActiveColor,
		PendingDraws: state.PendingDraws,
		Status:       state.Status,
		WinnerID:     state.WinnerID,
		Timestamp:    rec.CreatedAt.UnixMilli(),
	}
	if err := e.publisher.PublishMove(ctx, ev); err != nil {
		e.log.WithError(err).WithField("game_id", state.ID).Warn("failed to publish move")
	}
}

func (e *Engine) notify(gameID uuid.UUID) {
	if e.observer != nil {
		e.observer(gameID)
	}
}

// retireIfGone drops the coordination state of a game that does not exist or
// is already over.
func (e *Engine) retireIfGone(gameID uuid.UUID, err error) {
	if errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrGameFinished) {
		e.games.Invalidate(gameID)
	}
}
