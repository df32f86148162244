// internal/handlers/game.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/models"
)

type startGameRequest struct {
	PlayerIDs []uuid.UUID `json:"player_ids"`
}

type moveRequest struct {
	CardID      *int              `json:"card_id,omitempty"`
	Action      models.MoveAction `json:"action"`
	ChosenColor models.Color      `json:"chosen_color,omitempty"`
}

type endGameRequest struct {
	WinnerID uuid.UUID `json:"winner_id"`
}

func (a *API) startGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	var req startGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	gameID, err := a.engine.StartGame(r.Context(), req.PlayerIDs)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	a.driveComputers(gameID)
	writeJSON(w, a.log, http.StatusCreated, map[string]uuid.UUID{"game_id": gameID})
}

func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	status, err := a.engine.GetStatus(r.Context(), gameID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, status)
}

// getHand returns the caller's own hand.
func (a *API) getHand(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	hand, err := a.engine.GetHand(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, map[string][]models.Card{"hand": hand})
}

func (a *API) getHandCounts(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	counts, err := a.engine.GetHandCounts(r.Context(), gameID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, counts)
}

// getState returns the same snapshot the websocket pushes.
func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	state, err := a.engine.SyncState(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, state)
}

func (a *API) processMove(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}

	var card *models.Card
	if req.CardID != nil {
		card = &models.Card{ID: *req.CardID}
	}
	if err := a.engine.ProcessMove(r.Context(), gameID, playerID, card, req.Action, req.ChosenColor); err != nil {
		writeError(w, a.log, err)
		return
	}
	a.driveComputers(gameID)

	status, err := a.engine.GetStatus(r.Context(), gameID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, status)
}

func (a *API) drawCard(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	card, err := a.engine.DrawCard(r.Context(), gameID, playerID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, map[string]models.Card{"card": card})
}

func (a *API) endGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authenticate(w, r); !ok {
		return
	}
	gameID, err := pathUUID(r, "id")
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	var req endGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	if err := a.engine.EndGame(r.Context(), gameID, req.WinnerID); err != nil {
		writeError(w, a.log, err)
		return
	}
	status, err := a.engine.GetStatus(r.Context(), gameID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, status)
}

// cardRef names a catalogue card and, for wilds, the color it was bound to.
type cardRef struct {
	ID    int          `json:"id"`
	Color models.Color `json:"chosen_color,omitempty"`
}

func (c cardRef) resolve() (models.Card, error) {
	card, ok := game.CardByID(c.ID)
	if !ok {
		return models.Card{}, fmt.Errorf("unknown card id %d", c.ID)
	}
	if c.Color != "" {
		if err := card.BindColor(c.Color); err != nil {
			return models.Card{}, err
		}
	}
	return card, nil
}

type validateRequest struct {
	Card         cardRef `json:"card"`
	TopCard      cardRef `json:"top_card"`
	PendingDraws int     `json:"pending_draws"`
}

func (a *API) validateMove(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	card, err := req.Card.resolve()
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	top, err := req.TopCard.resolve()
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, map[string]bool{
		"legal": a.engine.ValidateMove(card, top, req.PendingDraws),
	})
}

type decideRequest struct {
	Hand         []int   `json:"hand"`
	TopCard      cardRef `json:"top_card"`
	PendingDraws int     `json:"pending_draws"`
}

type decideResponse struct {
	Play        bool         `json:"play"`
	Card        *models.Card `json:"card,omitempty"`
	ChosenColor models.Color `json:"chosen_color,omitempty"`
}

// decideAIMove runs the computer strategy on a hand supplied by the client.
func (a *API) decideAIMove(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	top, err := req.TopCard.resolve()
	if err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	hand := make([]models.Card, 0, len(req.Hand))
	for _, id := range req.Hand {
		c, err := cardRef{ID: id}.resolve()
		if err != nil {
			writeBadRequest(w, a.log, err)
			return
		}
		hand = append(hand, c)
	}

	legal := game.LegalMoves(hand, top, req.PendingDraws)
	card, color, ok := a.engine.DecideAIMove(legal, hand)
	resp := decideResponse{Play: ok}
	if ok {
		resp.Card = &card
		resp.ChosenColor = color
	}
	writeJSON(w, a.log, http.StatusOK, resp)
}

func (a *API) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.GetStatistics(r.Context())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, stats)
}
