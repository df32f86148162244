// internal/handlers/players.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/models"
)

type createPlayersRequest struct {
	Players []game.NewPlayer `json:"players"`
}

type createSessionRequest struct {
	AIOpponents int `json:"ai_opponents"`
}

type playerWithToken struct {
	models.Player
	Token string `json:"token"`
}

type playersResponse struct {
	Players []playerWithToken `json:"players"`
}

func (a *API) createPlayers(w http.ResponseWriter, r *http.Request) {
	var req createPlayersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	if len(req.Players) == 0 {
		writeBadRequest(w, a.log, errors.New("no players given"))
		return
	}
	ids, err := a.engine.CreatePlayers(r.Context(), req.Players)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	a.respondWithPlayers(w, r, ids)
}

// createSession registers one human and the requested number of computer
// opponents in a single call.
func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, a.log, err)
		return
	}
	ids, err := a.engine.SetupSession(r.Context(), req.AIOpponents)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	a.respondWithPlayers(w, r, ids)
}

func (a *API) respondWithPlayers(w http.ResponseWriter, r *http.Request, ids []uuid.UUID) {
	resp := playersResponse{Players: make([]playerWithToken, 0, len(ids))}
	for _, id := range ids {
		p, err := a.engine.GetPlayer(r.Context(), id)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		token, err := a.signer.CreateJWT(id)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		resp.Players = append(resp.Players, playerWithToken{Player: *p, Token: token})
	}

	// The first player of a request is the caller; browsers keep its token.
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    resp.Players[0].Token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, a.log, http.StatusCreated, resp)
}

func (a *API) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := a.engine.ListPlayers(r.Context())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, a.log, http.StatusOK, map[string]any{"players": players})
}
