// internal/game/computer.go
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
)

// DecisionTask is a computer player's decision, computed in the background
// from a snapshot of the game. It is applied only while that snapshot still
// describes the game.
type DecisionTask struct {
	GameID   uuid.UUID
	PlayerID uuid.UUID

	epoch  uint64
	moves  int
	done   chan struct{}
	cancel context.CancelFunc

	decision Decision
	play     bool
	err      error
}

// Wait blocks until the decision resolves. play is false when the computer
// has nothing legal and must draw.
func (t *DecisionTask) Wait(ctx context.Context) (d Decision, play bool, err error) {
	select {
	case <-t.done:
		return t.decision, t.play, t.err
	case <-ctx.Done():
		return Decision{}, false, ctx.Err()
	}
}

func (t *DecisionTask) Cancel() {
	t.cancel()
}

// TurnResult describes a move a computer player made.
type TurnResult struct {
	PlayerID    uuid.UUID         `json:"player_id"`
	Action      models.MoveAction `json:"action"`
	Card        *models.Card      `json:"card,omitempty"`
	ChosenColor models.Color      `json:"chosen_color,omitempty"`
}

// StartComputerDecision snapshots the game and starts deciding for the
// computer player whose turn it is.
func (e *Engine) StartComputerDecision(ctx context.Context, gameID uuid.UUID) (*DecisionTask, error) {
	epoch := e.games.Epoch(gameID)

	var (
		status *models.GameStatus
		hand   []models.Card
		moves  int
	)
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		if status, err = statusOf(ctx, tx, gameID); err != nil {
			return err
		}
		if err := requireOngoing(&status.GameState); err != nil {
			return err
		}
		p, err := loadPlayer(ctx, tx, status.CurrentTurn)
		if err != nil {
			return err
		}
		if p.Kind != models.PlayerComputer {
			return fmt.Errorf("%w: %s is not a computer player", ErrNotPlayersTurn, p.ID)
		}
		if hand, err = tx.Hand(ctx, gameID, p.ID); err != nil {
			return err
		}
		moves, err = tx.CountMoves(ctx, gameID)
		return err
	})
	if err != nil {
		err = classify(err)
		e.retireIfGone(gameID, err)
		return nil, err
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &DecisionTask{
		GameID:   gameID,
		PlayerID: status.CurrentTurn,
		epoch:    epoch,
		moves:    moves,
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	untrack := e.games.track(gameID, cancel)

	go func() {
		defer close(t.done)
		defer untrack()
		defer cancel()

		if e.thinkDelay > 0 {
			timer := time.NewTimer(e.thinkDelay)
			defer timer.Stop()
			select {
			case <-tctx.Done():
				t.err = tctx.Err()
				return
			case <-timer.C:
			}
		}
		if err := tctx.Err(); err != nil {
			t.err = err
			return
		}
		legal := LegalMoves(hand, status.TopCard, status.PendingDraws)
		t.decision, t.play = Decide(legal, hand)
	}()
	return t, nil
}

// PlayComputerTurn decides and applies one computer move. It fails with
// ErrStaleDecision when the game moved on while the decision was computed.
func (e *Engine) PlayComputerTurn(ctx context.Context, gameID uuid.UUID) (*TurnResult, error) {
	task, err := e.StartComputerDecision(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer task.Cancel()

	d, play, err := task.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && !e.games.Current(gameID, task.epoch) {
			return nil, fmt.Errorf("%w: game %s ended while deciding", ErrStaleDecision, gameID)
		}
		return nil, err
	}

	unlock := e.games.Lock(gameID)
	defer unlock()
	if err := e.checkFresh(ctx, task); err != nil {
		return nil, err
	}

	res := &TurnResult{PlayerID: task.PlayerID}
	if play {
		card := d.Card
		res.Action = models.ActionPlayed
		res.Card = &card
		res.ChosenColor = d.Color
		_, err = e.processMoveLocked(ctx, gameID, task.PlayerID, &card, models.ActionPlayed, d.Color)
	} else {
		res.Action = models.ActionDrawnAndPassed
		res.Card, err = e.drawAndPassLocked(ctx, gameID, task.PlayerID)
	}
	if err != nil {
		return nil, err
	}

	entry := e.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": task.PlayerID,
		"action":    res.Action,
	})
	if play {
		entry = entry.WithField("card", d.Card.String())
	}
	entry.Info("computer moved")
	return res, nil
}

// checkFresh reports whether task still applies. The caller holds the game lock.
func (e *Engine) checkFresh(ctx context.Context, task *DecisionTask) error {
	if !e.games.Current(task.GameID, task.epoch) {
		return fmt.Errorf("%w: game %s was ended or abandoned", ErrStaleDecision, task.GameID)
	}
	return classify(e.store.View(ctx, func(tx store.Tx) error {
		g, err := loadGame(ctx, tx, task.GameID)
		if err != nil {
			return err
		}
		if g.Status != models.StatusOngoing || g.CurrentTurn != task.PlayerID {
			return fmt.Errorf("%w: turn passed to %s", ErrStaleDecision, g.CurrentTurn)
		}
		n, err := tx.CountMoves(ctx, task.GameID)
		if err != nil {
			return err
		}
		if n != task.moves {
			return fmt.Errorf("%w: %d moves applied since snapshot", ErrStaleDecision, n-task.moves)
		}
		return nil
	}))
}

// RunComputerTurns plays computer moves until the game finishes, a human is
// to move, or the game is abandoned, and returns the moves made.
func (e *Engine) RunComputerTurns(ctx context.Context, gameID uuid.UUID) ([]TurnResult, error) {
	status, err := e.GetStatus(ctx, gameID)
	if err != nil || status.Status != models.StatusOngoing {
		return nil, err
	}
	epoch := e.games.Epoch(gameID)
	var played []TurnResult
	for {
		if err := ctx.Err(); err != nil {
			return played, err
		}
		if !e.games.Current(gameID, epoch) {
			return played, nil
		}
		status, err := e.GetStatus(ctx, gameID)
		if err != nil {
			e.retireIfGone(gameID, err)
			return played, err
		}
		if status.Status != models.StatusOngoing {
			// The game may have finished before Epoch registered it.
			e.games.Invalidate(gameID)
			return played, nil
		}
		p, err := e.GetPlayer(ctx, status.CurrentTurn)
		if err != nil {
			return played, err
		}
		if p.Kind != models.PlayerComputer {
			return played, nil
		}

		res, err := e.PlayComputerTurn(ctx, gameID)
		if errors.Is(err, ErrStaleDecision) {
			continue
		}
		if err != nil {
			return played, err
		}
		played = append(played, *res)
	}
}
