// internal/game/game_test.go
package game

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPublisher collects published moves instead of pushing them to Redis.
type mockPublisher struct {
	mu     sync.Mutex
	events []models.MoveEvent
	err    error
}

func (mp *mockPublisher) PublishMove(_ context.Context, ev models.MoveEvent) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.events = append(mp.events, ev)
	return mp.err
}

func (mp *mockPublisher) getEvents() []models.MoveEvent {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]models.MoveEvent(nil), mp.events...)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestGame creates the given players, humans first, and starts a game
// with them. The returned seats follow creation order.
func setupTestGame(t *testing.T, humans, computers int, opts ...Option) (*Engine, store.Store, uuid.UUID, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	e := NewEngine(st, append([]Option{WithLogger(testLogger()), WithSeed(42)}, opts...)...)

	var players []NewPlayer
	for i := 0; i < humans; i++ {
		players = append(players, NewPlayer{Name: "Human", Kind: models.PlayerHuman})
	}
	for i := 0; i < computers; i++ {
		players = append(players, NewPlayer{Name: "Bot", Kind: models.PlayerComputer})
	}
	ids, err := e.CreatePlayers(ctx, players)
	require.NoError(t, err)

	gameID, err := e.StartGame(ctx, ids)
	require.NoError(t, err)
	return e, st, gameID, ids
}

// cardID returns the catalogue id of the nth copy of a card.
func cardID(t *testing.T, color models.Color, face models.Face, nth int) int {
	t.Helper()
	for _, c := range StandardDeck() {
		if c.Color == color && c.Face == face {
			if nth == 0 {
				return c.ID
			}
			nth--
		}
	}
	t.Fatalf("no copy of %s %s", color, face)
	return 0
}

// rig describes a hand-arranged position to put a started game in.
type rig struct {
	hands     map[uuid.UUID][]int
	top       int
	turn      uuid.UUID
	pending   int
	direction models.Direction
	// emptyDeck sends every unassigned card to the discard pile.
	emptyDeck bool
}

func rigGame(t *testing.T, st store.Store, gameID uuid.UUID, r rig) {
	t.Helper()
	ctx := context.Background()
	err := st.InTx(ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		for _, pid := range g.PlayerOrder {
			hand, err := tx.Hand(ctx, gameID, pid)
			if err != nil {
				return err
			}
			for _, c := range hand {
				if err := tx.RemoveFromHand(ctx, gameID, pid, c.ID); err != nil {
					return err
				}
			}
		}

		rest := models.InDeck
		if r.emptyDeck {
			rest = models.InDiscard
		}
		for id := 1; id <= DeckSize; id++ {
			if err := tx.Relocate(ctx, gameID, id, rest); err != nil {
				return err
			}
		}
		for pid, ids := range r.hands {
			for _, id := range ids {
				if err := tx.Relocate(ctx, gameID, id, models.InHand); err != nil {
					return err
				}
				if err := tx.AddToHand(ctx, gameID, pid, id); err != nil {
					return err
				}
			}
		}
		if err := tx.Relocate(ctx, gameID, r.top, models.InDiscard); err != nil {
			return err
		}

		top, _, err := tx.GetCard(ctx, gameID, r.top)
		if err != nil {
			return err
		}
		g.TopCardID = top.ID
		g.ActiveColor = top.Color
		g.CurrentTurn = r.turn
		g.PendingDraws = r.pending
		if r.direction != "" {
			g.Direction = r.direction
		}
		return tx.UpdateGame(ctx, g)
	})
	require.NoError(t, err)
}

func assertConserved(t *testing.T, e *Engine, gameID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	locs, err := e.DeckCounts(ctx, gameID)
	require.NoError(t, err)
	counts, err := e.GetHandCounts(ctx, gameID)
	require.NoError(t, err)

	held := 0
	for _, n := range counts {
		held += n
	}
	assert.Equal(t, held, locs[models.InHand], "hand rows and in_hand cards disagree")
	assert.Equal(t, DeckSize, locs[models.InDeck]+locs[models.InDiscard]+held, "cards were created or lost")
}

func handIDs(t *testing.T, e *Engine, gameID, playerID uuid.UUID) []int {
	t.Helper()
	hand, err := e.GetHand(context.Background(), gameID, playerID)
	require.NoError(t, err)
	ids := make([]int, len(hand))
	for i, c := range hand {
		ids[i] = c.ID
	}
	return ids
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()
	e, _, gameID, seats := setupTestGame(t, 1, 2)

	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, status.Status)
	assert.Equal(t, seats, status.PlayerOrder)
	assert.Equal(t, seats[0], status.CurrentTurn)
	assert.Equal(t, models.Clockwise, status.Direction)
	assert.Zero(t, status.PendingDraws)
	assert.False(t, status.TopCard.IsWild(), "a game never opens on a wild")
	assert.Equal(t, status.TopCard.Color, status.ActiveColor)
	assert.Equal(t, status.TopCardID, status.TopCard.ID)

	counts, err := e.GetHandCounts(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	for _, pid := range seats {
		assert.Equal(t, HandSize, counts[pid])
	}
	assertConserved(t, e, gameID)
}

func TestStartGameSeatsFollowCreationOrder(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory(), WithLogger(testLogger()))
	ids, err := e.SetupSession(ctx, 2)
	require.NoError(t, err)

	gameID, err := e.StartGame(ctx, []uuid.UUID{ids[2], ids[0], ids[1]})
	require.NoError(t, err)

	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, ids, status.PlayerOrder)

	players, err := e.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, "You", players[0].DisplayName)
	assert.Equal(t, models.PlayerHuman, players[0].Kind)
	assert.Equal(t, "AI Bot 2", players[2].DisplayName)
	assert.Equal(t, models.PlayerComputer, players[2].Kind)
}

func TestStartGamePlayerLimits(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory(), WithLogger(testLogger()), WithSeed(7))

	one, err := e.CreatePlayers(ctx, []NewPlayer{{Name: "solo", Kind: models.PlayerHuman}})
	require.NoError(t, err)
	_, err = e.StartGame(ctx, one)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = e.StartGame(ctx, []uuid.UUID{one[0], one[0]})
	assert.ErrorIs(t, err, ErrInvalidPlayer)

	_, err = e.StartGame(ctx, []uuid.UUID{one[0], uuid.New()})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	many := make([]NewPlayer, 16)
	for i := range many {
		many[i] = NewPlayer{Name: "bot", Kind: models.PlayerComputer}
	}
	ids, err := e.CreatePlayers(ctx, many)
	require.NoError(t, err)
	_, err = e.StartGame(ctx, ids)
	assert.ErrorIs(t, err, ErrTooManyPlayers)

	gameID, err := e.StartGame(ctx, ids[:15])
	require.NoError(t, err, "fifteen hands and an opening card fit in one deck")
	assertConserved(t, e, gameID)
}

func TestCreatePlayersValidates(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory(), WithLogger(testLogger()))

	_, err := e.CreatePlayers(ctx, []NewPlayer{{Name: "  ", Kind: models.PlayerHuman}})
	assert.ErrorIs(t, err, ErrInvalidPlayer)
	_, err = e.CreatePlayers(ctx, []NewPlayer{{Name: "x", Kind: "alien"}})
	assert.ErrorIs(t, err, ErrInvalidPlayer)
	_, err = e.SetupSession(ctx, 0)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	players, err := e.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestEndToEndHumanPlaysLastCard(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 1, 2)
	human, bot1, bot2 := seats[0], seats[1], seats[2]

	red5 := cardID(t, models.ColorRed, "5", 0)
	red7 := cardID(t, models.ColorRed, "7", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{
			human: {red5},
			bot1:  {cardID(t, models.ColorBlue, "1", 0), cardID(t, models.ColorGreen, models.FaceSkip, 0)},
			bot2:  {cardID(t, models.ColorWild, models.FaceWild, 0)},
		},
		top:  red7,
		turn: human,
	})

	hand, err := e.GetHand(ctx, gameID, human)
	require.NoError(t, err)
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	require.True(t, e.ValidateMove(hand[0], status.TopCard, status.PendingDraws))

	require.NoError(t, e.ProcessMove(ctx, gameID, human, &hand[0], models.ActionPlayed, ""))

	assert.Empty(t, handIDs(t, e, gameID, human))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, red5, status.TopCardID)
	assert.Equal(t, bot1, status.CurrentTurn)
	assert.Equal(t, models.ColorRed, status.ActiveColor)
	assert.Equal(t, models.StatusFinished, status.Status)
	assert.Equal(t, human, status.WinnerID)

	winner, err := e.GetPlayer(ctx, human)
	require.NoError(t, err)
	assert.Equal(t, 1+20+50, winner.Score)

	stats, err := e.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Statistics{GamesFinished: 1, TurnsPlayed: 1, HumanWins: 1}, stats)

	err = e.ProcessMove(ctx, gameID, bot1, &models.Card{ID: cardID(t, models.ColorBlue, "1", 0)}, models.ActionPlayed, "")
	assert.ErrorIs(t, err, ErrGameFinished)
	assertConserved(t, e, gameID)
}

func TestPlayAdvancesTurnAndKeepsHand(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{}
	e, st, gameID, seats := setupTestGame(t, 1, 2, WithPublisher(pub))

	red5 := cardID(t, models.ColorRed, "5", 0)
	blue9 := cardID(t, models.ColorBlue, "9", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {red5, blue9}, seats[1]: {blue9 + 1}, seats[2]: {red5 + 1}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[0], &models.Card{ID: red5}, models.ActionPlayed, ""))
	assert.Equal(t, []int{blue9}, handIDs(t, e, gameID, seats[0]))

	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, status.Status)
	assert.Equal(t, seats[1], status.CurrentTurn)

	events := pub.getEvents()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].TurnNumber)
	assert.Equal(t, models.ActionPlayed, events[0].Action)
	require.NotNil(t, events[0].CardID)
	assert.Equal(t, red5, *events[0].CardID)
	assert.Equal(t, seats[1], events[0].CurrentTurn)
	assert.NotZero(t, events[0].Timestamp)
	assertConserved(t, e, gameID)
}

func TestPublishFailureDoesNotUndoMove(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{err: errors.New("redis down")}
	e, st, gameID, seats := setupTestGame(t, 2, 0, WithPublisher(pub))

	red5 := cardID(t, models.ColorRed, "5", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {red5, red5 + 1}, seats[1]: {cardID(t, models.ColorBlue, "2", 0)}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[0], &models.Card{ID: red5}, models.ActionPlayed, ""))
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, red5, status.TopCardID)
	assert.Len(t, pub.getEvents(), 1)
}

func TestStackingAndPayingPenalty(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 3, 0)
	p0, p1, p2 := seats[0], seats[1], seats[2]

	redDraw2 := cardID(t, models.ColorRed, models.FaceDraw2, 0)
	greenDraw2 := cardID(t, models.ColorGreen, models.FaceDraw2, 0)
	yellow7 := cardID(t, models.ColorYellow, "7", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{
			p0: {redDraw2, cardID(t, models.ColorGreen, "3", 0)},
			p1: {yellow7},
			p2: {greenDraw2, cardID(t, models.ColorBlue, "1", 0)},
		},
		top:  cardID(t, models.ColorRed, "5", 0),
		turn: p0,
	})

	require.NoError(t, e.ProcessMove(ctx, gameID, p0, &models.Card{ID: redDraw2}, models.ActionPlayed, ""))
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.PendingDraws)
	assert.Equal(t, p2, status.CurrentTurn, "a draw2 skips the next seat")

	err = e.ProcessMove(ctx, gameID, p2, &models.Card{ID: cardID(t, models.ColorBlue, "1", 0)}, models.ActionPlayed, "")
	assert.ErrorIs(t, err, ErrInvalidMove)

	require.NoError(t, e.ProcessMove(ctx, gameID, p2, &models.Card{ID: greenDraw2}, models.ActionPlayed, ""))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 4, status.PendingDraws, "stacked penalties add up")
	assert.Equal(t, p1, status.CurrentTurn, "wrapping past p0")

	err = e.ProcessMove(ctx, gameID, p1, &models.Card{ID: yellow7}, models.ActionPlayed, "")
	assert.ErrorIs(t, err, ErrInvalidMove)
	_, err = e.DrawCard(ctx, gameID, p1)
	assert.ErrorIs(t, err, ErrInvalidMove, "a pending stack is paid by passing")

	require.NoError(t, e.ProcessMove(ctx, gameID, p1, nil, models.ActionDrawnAndPassed, ""))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Zero(t, status.PendingDraws)
	assert.Equal(t, p2, status.CurrentTurn, "paying a stack advances by one")
	assert.Len(t, handIDs(t, e, gameID, p1), 5)

	stats, err := e.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Draw2Count)
	assert.Equal(t, 3, stats.TurnsPlayed)
	assertConserved(t, e, gameID)
}

func TestSkipAndReverse(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 3, 0)
	p0, p1, p2 := seats[0], seats[1], seats[2]

	redSkip := cardID(t, models.ColorRed, models.FaceSkip, 0)
	redReverse := cardID(t, models.ColorRed, models.FaceReverse, 0)
	blueReverse := cardID(t, models.ColorBlue, models.FaceReverse, 0)
	filler := cardID(t, models.ColorYellow, "8", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{
			p0: {redSkip, filler},
			p1: {filler + 1},
			p2: {redReverse, cardID(t, models.ColorYellow, "9", 0)},
		},
		top:  cardID(t, models.ColorRed, "2", 0),
		turn: p0,
	})

	require.NoError(t, e.ProcessMove(ctx, gameID, p0, &models.Card{ID: redSkip}, models.ActionPlayed, ""))
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, p2, status.CurrentTurn, "skip passes over the next seat")

	require.NoError(t, e.ProcessMove(ctx, gameID, p2, &models.Card{ID: redReverse}, models.ActionPlayed, ""))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.Counterclockwise, status.Direction)
	assert.Equal(t, p1, status.CurrentTurn)

	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{p0: {filler}, p1: {blueReverse, filler + 1}, p2: {redSkip}},
		top:   redReverse,
		turn:  p1,
	})
	require.NoError(t, e.ProcessMove(ctx, gameID, p1, &models.Card{ID: blueReverse}, models.ActionPlayed, ""))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.Clockwise, status.Direction, "a second reverse restores the direction")
	assert.Equal(t, p2, status.CurrentTurn)
	assert.Equal(t, models.ColorBlue, status.ActiveColor)
}

func TestWildColorBinding(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 3, 0)

	wild4 := cardID(t, models.ColorWild, models.FaceWild4, 0)
	wild := cardID(t, models.ColorWild, models.FaceWild, 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{
			seats[0]: {wild4, cardID(t, models.ColorRed, "1", 0)},
			seats[1]: {wild, cardID(t, models.ColorGreen, "1", 0)},
			seats[2]: {cardID(t, models.ColorYellow, "1", 0)},
		},
		top:  cardID(t, models.ColorRed, "4", 0),
		turn: seats[0],
	})

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[0], &models.Card{ID: wild4}, models.ActionPlayed, models.ColorBlue))
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.ColorBlue, status.ActiveColor)
	assert.Equal(t, models.FaceWild4, status.TopCard.Face)
	assert.Equal(t, models.ColorBlue, status.TopCard.SuitColor())
	assert.Equal(t, models.ColorWild, status.TopCard.Color, "printed color never changes")
	assert.Equal(t, 4, status.PendingDraws)
	assert.Equal(t, seats[2], status.CurrentTurn)

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[2], nil, models.ActionDrawnAndPassed, ""))
	require.NoError(t, e.ProcessMove(ctx, gameID, seats[0], &models.Card{ID: cardID(t, models.ColorRed, "1", 0)}, models.ActionDrawnAndPassed, ""))

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[1], &models.Card{ID: wild}, models.ActionPlayed, "purple"))
	status, err = e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, models.ColorRed, status.ActiveColor, "an invalid wild color defaults to red")
	assert.Equal(t, models.ColorRed, status.TopCard.Chosen)
	assertConserved(t, e, gameID)
}

func TestProcessMoveRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	red5 := cardID(t, models.ColorRed, "5", 0)
	blue9 := cardID(t, models.ColorBlue, "9", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {red5, blue9}, seats[1]: {red5 + 1}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})
	before, err := e.SyncState(ctx, gameID, seats[0])
	require.NoError(t, err)

	tests := []struct {
		name   string
		game   uuid.UUID
		player uuid.UUID
		card   *models.Card
		action models.MoveAction
		want   error
	}{
		{"unknown game", uuid.New(), seats[0], &models.Card{ID: red5}, models.ActionPlayed, ErrGameNotFound},
		{"not seated", gameID, uuid.New(), &models.Card{ID: red5}, models.ActionPlayed, ErrPlayerNotFound},
		{"out of turn", gameID, seats[1], &models.Card{ID: red5 + 1}, models.ActionPlayed, ErrNotPlayersTurn},
		{"card not held", gameID, seats[0], &models.Card{ID: red5 + 1}, models.ActionPlayed, ErrCardNotInHand},
		{"illegal card", gameID, seats[0], &models.Card{ID: blue9}, models.ActionPlayed, ErrInvalidMove},
		{"play without card", gameID, seats[0], nil, models.ActionPlayed, ErrInvalidMove},
		{"unknown action", gameID, seats[0], nil, "shuffled", ErrInvalidMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ProcessMove(ctx, tt.game, tt.player, tt.card, tt.action, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	after, err := e.SyncState(ctx, gameID, seats[0])
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stats, err := e.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TurnsPlayed)
}

// failingStore breaks UpdateGame inside every transaction.
type failingStore struct {
	store.Store
}

type failingTx struct {
	store.Tx
}

func (f failingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{tx})
	})
}

func (failingTx) UpdateGame(context.Context, *models.GameState) error {
	return errors.New("connection reset")
}

func TestStoreFailureRollsBackMove(t *testing.T) {
	ctx := context.Background()
	_, st, gameID, seats := setupTestGame(t, 2, 0)

	red5 := cardID(t, models.ColorRed, "5", 0)
	red7 := cardID(t, models.ColorRed, "7", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {red5, red5 + 1}, seats[1]: {red7 + 1}},
		top:   red7,
		turn:  seats[0],
	})

	broken := NewEngine(failingStore{st}, WithLogger(testLogger()))
	err := broken.ProcessMove(ctx, gameID, seats[0], &models.Card{ID: red5}, models.ActionPlayed, "")
	require.ErrorIs(t, err, ErrTransactionFailure)

	status, err := broken.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, red7, status.TopCardID)
	assert.Equal(t, seats[0], status.CurrentTurn)
	assert.Equal(t, []int{red5, red5 + 1}, handIDs(t, broken, gameID, seats[0]))

	stats, err := broken.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TurnsPlayed)
	assertConserved(t, broken, gameID)

	_, err = broken.StartGame(ctx, seats)
	assert.ErrorIs(t, err, ErrTransactionFailure)
}

// dealFailStore fails the Nth card relocation, or the final game update when
// failAt is zero. It remembers the id of the last game inserted.
type dealFailStore struct {
	store.Store
	failAt int
	gameID uuid.UUID
}

type dealFailTx struct {
	store.Tx
	s         *dealFailStore
	relocated int
}

func (f *dealFailStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error {
		return fn(&dealFailTx{Tx: tx, s: f})
	})
}

func (t *dealFailTx) InsertGame(ctx context.Context, g *models.GameState) error {
	t.s.gameID = g.ID
	return t.Tx.InsertGame(ctx, g)
}

func (t *dealFailTx) Relocate(ctx context.Context, gameID uuid.UUID, cardID int, loc models.Location) error {
	t.relocated++
	if t.relocated == t.s.failAt {
		return errors.New("connection reset")
	}
	return t.Tx.Relocate(ctx, gameID, cardID, loc)
}

func (t *dealFailTx) UpdateGame(ctx context.Context, g *models.GameState) error {
	if t.s.failAt == 0 {
		return errors.New("connection reset")
	}
	return t.Tx.UpdateGame(ctx, g)
}

func TestStartGameRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	e := NewEngine(st, WithLogger(testLogger()), WithSeed(42))
	seats, err := e.CreatePlayers(ctx, []NewPlayer{
		{Name: "ann", Kind: models.PlayerHuman},
		{Name: "bob", Kind: models.PlayerHuman},
		{Name: "cat", Kind: models.PlayerHuman},
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		failAt int
	}{
		{"first deal", 1},
		{"mid deal", 10},
		{"first flip", 3*HandSize + 1},
		{"final update", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &dealFailStore{Store: st, failAt: tc.failAt}
			broken := NewEngine(fs, WithLogger(testLogger()), WithSeed(42))

			_, err := broken.StartGame(ctx, seats)
			require.ErrorIs(t, err, ErrTransactionFailure)
			require.NotEqual(t, uuid.Nil, fs.gameID)

			_, err = e.GetStatus(ctx, fs.gameID)
			assert.ErrorIs(t, err, ErrGameNotFound)
			err = st.View(ctx, func(tx store.Tx) error {
				_, err := tx.CountLocations(ctx, fs.gameID)
				return err
			})
			assert.ErrorIs(t, err, store.ErrNotFound, "no deck entries survive")
			assert.Equal(t, 0, broken.games.Len())
		})
	}

	stats, err := e.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TurnsPlayed)

	gameID, err := e.StartGame(ctx, seats)
	require.NoError(t, err)
	assertConserved(t, e, gameID)
}

func TestDrawCard(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	blue9 := cardID(t, models.ColorBlue, "9", 0)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {blue9}, seats[1]: {blue9 + 1}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})

	_, err := e.DrawCard(ctx, gameID, seats[1])
	assert.ErrorIs(t, err, ErrNotPlayersTurn)

	drawn, err := e.DrawCard(ctx, gameID, seats[0])
	require.NoError(t, err)
	assert.Contains(t, handIDs(t, e, gameID, seats[0]), drawn.ID)
	assertConserved(t, e, gameID)

	require.NoError(t, e.ProcessMove(ctx, gameID, seats[0], &drawn, models.ActionDrawnAndPassed, ""))
	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, seats[1], status.CurrentTurn)
	assert.Len(t, handIDs(t, e, gameID, seats[0]), 2)
}

func TestDrawRecyclesDiscardPile(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	top := cardID(t, models.ColorRed, "7", 0)
	rigGame(t, st, gameID, rig{
		hands:     map[uuid.UUID][]int{seats[0]: {cardID(t, models.ColorBlue, "9", 0)}, seats[1]: {cardID(t, models.ColorBlue, "8", 0)}},
		top:       top,
		turn:      seats[0],
		emptyDeck: true,
	})

	_, err := e.DrawCard(ctx, gameID, seats[0])
	require.NoError(t, err)

	locs, err := e.DeckCounts(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 1, locs[models.InDiscard], "only the top card stays on the pile")
	assert.Equal(t, DeckSize-1-3, locs[models.InDeck])

	status, err := e.GetStatus(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, top, status.TopCardID)
	assertConserved(t, e, gameID)
}

func TestDrawFromExhaustedDeck(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	top := cardID(t, models.ColorRed, "7", 0)
	var all []int
	for id := 1; id <= DeckSize; id++ {
		if id != top {
			all = append(all, id)
		}
	}
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: all[:50], seats[1]: all[50:]},
		top:   top,
		turn:  seats[0],
	})

	_, err := e.DrawCard(ctx, gameID, seats[0])
	assert.ErrorIs(t, err, ErrDeckExhausted)
	assert.Len(t, handIDs(t, e, gameID, seats[0]), 50)
	assertConserved(t, e, gameID)
}

func TestGetHandIsSorted(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	wild := cardID(t, models.ColorWild, models.FaceWild, 0)
	blueSkip := cardID(t, models.ColorBlue, models.FaceSkip, 0)
	blue3 := cardID(t, models.ColorBlue, "3", 0)
	red9 := cardID(t, models.ColorRed, "9", 0)
	red9b := cardID(t, models.ColorRed, "9", 1)
	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {wild, blueSkip, red9b, blue3, red9}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})

	assert.Equal(t, []int{red9, red9b, blue3, blueSkip, wild}, handIDs(t, e, gameID, seats[0]))
	assert.Empty(t, handIDs(t, e, gameID, seats[1]))

	_, err := e.GetHand(ctx, gameID, uuid.New())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = e.GetHand(ctx, uuid.New(), seats[0])
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestEndGame(t *testing.T) {
	ctx := context.Background()
	e, st, gameID, seats := setupTestGame(t, 2, 0)

	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{
			seats[0]: {cardID(t, models.ColorRed, "3", 0)},
			seats[1]: {cardID(t, models.ColorRed, "8", 0), cardID(t, models.ColorWild, models.FaceWild4, 0)},
		},
		top:  cardID(t, models.ColorRed, "7", 0),
		turn: seats[0],
	})

	assert.ErrorIs(t, e.EndGame(ctx, gameID, uuid.New()), ErrPlayerNotFound)
	assert.ErrorIs(t, e.EndGame(ctx, uuid.New(), seats[0]), ErrGameNotFound)

	require.NoError(t, e.EndGame(ctx, gameID, seats[0]))
	require.NoError(t, e.EndGame(ctx, gameID, seats[0]), "ending again with the same winner is a no-op")
	assert.ErrorIs(t, e.EndGame(ctx, gameID, seats[1]), ErrGameFinished)

	winner, err := e.GetPlayer(ctx, seats[0])
	require.NoError(t, err)
	assert.Equal(t, 58, winner.Score)

	_, err = e.DrawCard(ctx, gameID, seats[0])
	assert.ErrorIs(t, err, ErrGameFinished)

	stats, err := e.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GamesFinished)
	assert.Equal(t, 1, stats.HumanWins)
}

func TestStateObserverSeesCommittedChanges(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	notified := map[uuid.UUID]int{}
	e, st, gameID, seats := setupTestGame(t, 2, 0, WithStateObserver(func(id uuid.UUID) {
		mu.Lock()
		defer mu.Unlock()
		notified[id]++
	}))

	rigGame(t, st, gameID, rig{
		hands: map[uuid.UUID][]int{seats[0]: {cardID(t, models.ColorBlue, "9", 0)}, seats[1]: {cardID(t, models.ColorBlue, "8", 0)}},
		top:   cardID(t, models.ColorRed, "7", 0),
		turn:  seats[0],
	})
	_, err := e.DrawCard(ctx, gameID, seats[0])
	require.NoError(t, err)
	_ = e.ProcessMove(ctx, gameID, seats[1], nil, models.ActionDrawnAndPassed, "")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, notified[gameID], "start and draw notify, rejected moves do not")
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	e, _, gameID, seats := setupTestGame(t, 1, 1)

	s, err := e.SyncState(ctx, gameID, seats[0])
	require.NoError(t, err)
	assert.Len(t, s.Hand, HandSize)
	assert.Equal(t, HandSize, s.HandCounts[seats[1]])
	assert.Equal(t, DeckSize, s.DeckSize+s.DiscardSize+2*HandSize)

	spectator, err := e.SyncState(ctx, gameID, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, spectator.Hand)

	data := MarshalEvent(GameEvent{Type: EventSyncState, State: spectator})
	assert.Contains(t, string(data), `"type":"sync_state"`)
}
