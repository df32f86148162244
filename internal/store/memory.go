// internal/store/memory.go
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
)

var errReadOnly = errors.New("write attempted inside a read-only view")

type deckEntry struct {
	card models.Card
	loc  models.Location
}

type memGame struct {
	state models.GameState
	deck  map[int]*deckEntry
	hands map[uuid.UUID][]int
	moves int
}

type memData struct {
	players map[uuid.UUID]models.Player
	seq     int64
	games   map[uuid.UUID]*memGame
	moves   []models.MoveRecord
}

func (d *memData) clone() *memData {
	out := &memData{
		players: make(map[uuid.UUID]models.Player, len(d.players)),
		seq:     d.seq,
		games:   make(map[uuid.UUID]*memGame, len(d.games)),
		moves:   slices.Clone(d.moves),
	}
	for id, p := range d.players {
		out.players[id] = p
	}
	for id, g := range d.games {
		ng := &memGame{
			state: g.state,
			deck:  make(map[int]*deckEntry, len(g.deck)),
			hands: make(map[uuid.UUID][]int, len(g.hands)),
			moves: g.moves,
		}
		ng.state.PlayerOrder = slices.Clone(g.state.PlayerOrder)
		for cid, e := range g.deck {
			cp := *e
			ng.deck[cid] = &cp
		}
		for pid, h := range g.hands {
			ng.hands[pid] = slices.Clone(h)
		}
		out.games[id] = ng
	}
	return out
}

// Memory is an in-process Store. Transactions work on a private copy of the
// committed data which replaces it only when the callback succeeds, so readers
// never see a partial update.
type Memory struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *memData
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: &memData{
			players: make(map[uuid.UUID]models.Player),
			games:   make(map[uuid.UUID]*memGame),
		},
	}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	work := m.data.clone()
	m.mu.RUnlock()

	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.data = work
	m.mu.Unlock()
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{d: m.data, readOnly: true})
}

func (m *Memory) Close() {}

type memTx struct {
	d        *memData
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) game(id uuid.UUID) (*memGame, error) {
	g, ok := t.d.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return g, nil
}

func (t *memTx) entry(gameID uuid.UUID, cardID int) (*memGame, *deckEntry, error) {
	g, err := t.game(gameID)
	if err != nil {
		return nil, nil, err
	}
	e, ok := g.deck[cardID]
	if !ok {
		return nil, nil, fmt.Errorf("card %d in game %s: %w", cardID, gameID, ErrNotFound)
	}
	return g, e, nil
}

func (t *memTx) InsertPlayer(_ context.Context, p *models.Player) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.d.players[p.ID]; exists {
		return fmt.Errorf("player %s already exists", p.ID)
	}
	t.d.seq++
	p.CreatedSeq = t.d.seq
	t.d.players[p.ID] = *p
	return nil
}

func (t *memTx) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	p, ok := t.d.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (t *memTx) ListPlayers(_ context.Context) ([]models.Player, error) {
	out := make([]models.Player, 0, len(t.d.players))
	for _, p := range t.d.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b models.Player) int {
		return int(a.CreatedSeq - b.CreatedSeq)
	})
	return out, nil
}

func (t *memTx) AddPlayerScore(_ context.Context, id uuid.UUID, delta int) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.d.players[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	p.Score += delta
	t.d.players[id] = p
	return nil
}

func (t *memTx) InsertGame(_ context.Context, g *models.GameState) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, exists := t.d.games[g.ID]; exists {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	st := *g
	st.PlayerOrder = slices.Clone(g.PlayerOrder)
	t.d.games[g.ID] = &memGame{
		state: st,
		deck:  make(map[int]*deckEntry),
		hands: make(map[uuid.UUID][]int),
	}
	return nil
}

func (t *memTx) GetGame(_ context.Context, id uuid.UUID) (*models.GameState, error) {
	g, err := t.game(id)
	if err != nil {
		return nil, err
	}
	st := g.state
	st.PlayerOrder = slices.Clone(g.state.PlayerOrder)
	return &st, nil
}

func (t *memTx) UpdateGame(_ context.Context, gs *models.GameState) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, err := t.game(gs.ID)
	if err != nil {
		return err
	}
	st := *gs
	st.PlayerOrder = slices.Clone(gs.PlayerOrder)
	g.state = st
	return nil
}

func (t *memTx) InsertDeck(_ context.Context, gameID uuid.UUID, cards []models.Card) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, err := t.game(gameID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if _, dup := g.deck[c.ID]; dup {
			return fmt.Errorf("card %d already in deck of game %s", c.ID, gameID)
		}
		g.deck[c.ID] = &deckEntry{card: c, loc: models.InDeck}
	}
	return nil
}

func (t *memTx) GetCard(_ context.Context, gameID uuid.UUID, cardID int) (models.Card, models.Location, error) {
	_, e, err := t.entry(gameID, cardID)
	if err != nil {
		return models.Card{}, "", err
	}
	return e.card, e.loc, nil
}

func (t *memTx) CardsAt(_ context.Context, gameID uuid.UUID, loc models.Location) ([]int, error) {
	g, err := t.game(gameID)
	if err != nil {
		return nil, err
	}
	var ids []int
	for id, e := range g.deck {
		if e.loc == loc {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) Relocate(_ context.Context, gameID uuid.UUID, cardID int, loc models.Location) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, e, err := t.entry(gameID, cardID)
	if err != nil {
		return err
	}
	e.loc = loc
	return nil
}

func (t *memTx) BindWildColor(_ context.Context, gameID uuid.UUID, cardID int, color models.Color) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, e, err := t.entry(gameID, cardID)
	if err != nil {
		return err
	}
	return e.card.BindColor(color)
}

func (t *memTx) RecycleDiscard(_ context.Context, gameID uuid.UUID, keep int) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	g, err := t.game(gameID)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, e := range g.deck {
		if e.loc == models.InDiscard && id != keep {
			e.loc = models.InDeck
			e.card.Chosen = ""
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountLocations(_ context.Context, gameID uuid.UUID) (map[models.Location]int, error) {
	g, err := t.game(gameID)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.Location]int, 3)
	for _, e := range g.deck {
		counts[e.loc]++
	}
	return counts, nil
}

func (t *memTx) AddToHand(_ context.Context, gameID, playerID uuid.UUID, cardID int) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, err := t.game(gameID)
	if err != nil {
		return err
	}
	for _, h := range g.hands {
		if slices.Contains(h, cardID) {
			return fmt.Errorf("card %d is already held in game %s", cardID, gameID)
		}
	}
	g.hands[playerID] = append(g.hands[playerID], cardID)
	return nil
}

func (t *memTx) RemoveFromHand(_ context.Context, gameID, playerID uuid.UUID, cardID int) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, err := t.game(gameID)
	if err != nil {
		return err
	}
	h := g.hands[playerID]
	i := slices.Index(h, cardID)
	if i < 0 {
		return fmt.Errorf("card %d in hand of %s: %w", cardID, playerID, ErrNotFound)
	}
	g.hands[playerID] = slices.Delete(h, i, i+1)
	return nil
}

func (t *memTx) Hand(_ context.Context, gameID, playerID uuid.UUID) ([]models.Card, error) {
	g, err := t.game(gameID)
	if err != nil {
		return nil, err
	}
	ids := g.hands[playerID]
	out := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.deck[id].card)
	}
	return out, nil
}

func (t *memTx) HandCounts(_ context.Context, gameID uuid.UUID) (map[uuid.UUID]int, error) {
	g, err := t.game(gameID)
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(g.state.PlayerOrder))
	for _, pid := range g.state.PlayerOrder {
		counts[pid] = 0
	}
	for pid, h := range g.hands {
		counts[pid] = len(h)
	}
	return counts, nil
}

func (t *memTx) AppendMove(_ context.Context, rec *models.MoveRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, err := t.game(rec.GameID)
	if err != nil {
		return err
	}
	g.moves++
	rec.TurnNumber = g.moves
	cp := *rec
	if rec.CardID != nil {
		id := *rec.CardID
		cp.CardID = &id
	}
	t.d.moves = append(t.d.moves, cp)
	return nil
}

func (t *memTx) CountMoves(_ context.Context, gameID uuid.UUID) (int, error) {
	g, err := t.game(gameID)
	if err != nil {
		return 0, err
	}
	return g.moves, nil
}

func (t *memTx) Statistics(_ context.Context) (models.Statistics, error) {
	var s models.Statistics
	for _, g := range t.d.games {
		if g.state.Status != models.StatusFinished {
			continue
		}
		s.GamesFinished++
		if w, ok := t.d.players[g.state.WinnerID]; ok {
			if w.Kind == models.PlayerComputer {
				s.AIWins++
			} else {
				s.HumanWins++
			}
		}
	}
	s.TurnsPlayed = len(t.d.moves)
	for _, m := range t.d.moves {
		if m.Action != models.ActionPlayed || m.CardID == nil {
			continue
		}
		g, ok := t.d.games[m.GameID]
		if !ok {
			continue
		}
		e, ok := g.deck[*m.CardID]
		if !ok {
			continue
		}
		switch e.card.Face {
		case models.FaceDraw2:
			s.Draw2Count++
		case models.FaceWild4:
			s.Wild4Count++
		}
	}
	return s, nil
}
