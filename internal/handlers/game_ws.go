// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

const wsWriteTimeout = 5 * time.Second

// GameMessage is a client message on the game websocket.
type GameMessage struct {
	Type        string       `json:"type"`
	CardID      *int         `json:"card_id,omitempty"`
	ChosenColor models.Color `json:"chosen_color,omitempty"`
}

// gameWS upgrades the connection for a seated player. The server pushes a
// snapshot on connect and after every committed change; the client may play
// through the same socket.
func (a *API) gameWS(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	// Fails for unknown games and for players not seated in this one.
	if _, err := a.engine.GetHand(r.Context(), gameID, playerID); err != nil {
		writeError(w, a.log, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"game"},
		OriginPatterns: a.OriginPatterns,
	})
	if err != nil {
		a.log.WithError(err).WithField("game_id", gameID).Warn("websocket accept failed")
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != "game" {
		c.Close(BadSubprotocolError, "client must use the 'game' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(a.log, r.RemoteAddr, r.URL.Path)

	sub, unsubscribe := a.hub.Subscribe(gameID, playerID)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := a.log.WithFields(logrus.Fields{"game_id": gameID, "player_id": playerID})
	go a.readGameMessages(ctx, cancel, c, gameID, playerID, log)

	err = a.pushState(ctx, c, sub, gameID, log)
	middleware.LogWebSocketDisconnect(a.log, r.RemoteAddr, r.URL.Path, err)
}

// pushState writes a snapshot now and after each wake-up until the game is
// over or the connection goes away.
func (a *API) pushState(ctx context.Context, c *websocket.Conn, sub *Subscriber, gameID uuid.UUID, log logrus.FieldLogger) error {
	for {
		state, err := a.engine.SyncState(ctx, gameID, sub.playerID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sendWsError(c, err.Error(), log)
			c.Close(closeCodeFor(err), "failed to read game state")
			return err
		}
		if err := sendEvent(c, game.GameEvent{Type: game.EventSyncState, State: state}); err != nil {
			return err
		}

		if state.Status.Status == models.StatusFinished {
			if err := sendEvent(c, game.GameEvent{
				Type:    game.EventGameEnd,
				Message: fmt.Sprintf("winner: %s", state.Status.WinnerID),
			}); err != nil {
				return err
			}
			return c.Close(websocket.StatusNormalClosure, "game finished")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-sub.wake:
		}
	}
}

// readGameMessages routes client actions to the engine. It cancels the
// connection context when the client goes away.
func (a *API) readGameMessages(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, gameID, playerID uuid.UUID, log logrus.FieldLogger) {
	defer cancel()
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Debug("websocket read loop closed")
			} else {
				log.WithError(err).Warn("error reading from websocket")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(c, "invalid JSON format", log)
			continue
		}
		log.WithField("type", msg.Type).Debug("websocket action received")

		switch msg.Type {
		case "ping":
			if err := sendWsMessage(c, map[string]string{"type": "pong"}); err != nil {
				return
			}
			continue
		case "action_play", "action_pass":
			var card *models.Card
			if msg.CardID != nil {
				card = &models.Card{ID: *msg.CardID}
			}
			action := models.ActionPlayed
			if msg.Type == "action_pass" {
				action = models.ActionDrawnAndPassed
			}
			err = a.engine.ProcessMove(ctx, gameID, playerID, card, action, msg.ChosenColor)
			if err == nil {
				a.driveComputers(gameID)
			}
		case "action_draw":
			_, err = a.engine.DrawCard(ctx, gameID, playerID)
		default:
			err = fmt.Errorf("unknown action type: %s", msg.Type)
		}
		if err != nil {
			sendWsError(c, err.Error(), log)
		}
	}
}

func closeCodeFor(err error) websocket.StatusCode {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return InvalidGameIDError
	case errors.Is(err, game.ErrPlayerNotFound):
		return InvalidPlayerIDError
	}
	return websocket.StatusInternalError
}

func sendEvent(c *websocket.Conn, ev game.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, game.MarshalEvent(ev))
}

func sendWsMessage(c *websocket.Conn, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal websocket message: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

func sendWsError(c *websocket.Conn, errorMsg string, log logrus.FieldLogger) {
	err := sendEvent(c, game.GameEvent{Type: game.EventError, Message: errorMsg})
	if err != nil {
		log.WithError(err).Debug("failed to send websocket error")
	}
}
