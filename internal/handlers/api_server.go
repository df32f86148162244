// internal/handlers/api_server.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/sirupsen/logrus"
)

// API serves the engine over HTTP and websockets. Computer turns are driven
// in the background after every human move.
type API struct {
	engine *game.Engine
	signer *auth.Signer
	hub    *Hub
	log    logrus.FieldLogger

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string

	bg      context.Context
	mu      sync.Mutex
	driving map[uuid.UUID]bool
	wg      sync.WaitGroup
}

// NewAPI builds the API. Background computer turns stop when ctx is done.
func NewAPI(ctx context.Context, engine *game.Engine, signer *auth.Signer, hub *Hub, logger logrus.FieldLogger) *API {
	return &API{
		engine:         engine,
		signer:         signer,
		hub:            hub,
		log:            logger,
		OriginPatterns: []string{"*"},
		bg:             ctx,
		driving:        make(map[uuid.UUID]bool),
	}
}

// Handler returns the routed API wrapped in the request logger.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /players", a.createPlayers)
	mux.HandleFunc("GET /players", a.listPlayers)
	mux.HandleFunc("POST /sessions", a.createSession)

	mux.HandleFunc("POST /games", a.startGame)
	mux.HandleFunc("GET /games/{id}", a.getStatus)
	mux.HandleFunc("GET /games/{id}/hand", a.getHand)
	mux.HandleFunc("GET /games/{id}/hand-counts", a.getHandCounts)
	mux.HandleFunc("GET /games/{id}/state", a.getState)
	mux.HandleFunc("POST /games/{id}/moves", a.processMove)
	mux.HandleFunc("POST /games/{id}/draw", a.drawCard)
	mux.HandleFunc("POST /games/{id}/end", a.endGame)
	mux.HandleFunc("GET /games/{id}/ws", a.gameWS)

	mux.HandleFunc("POST /validate", a.validateMove)
	mux.HandleFunc("POST /ai/decide", a.decideAIMove)
	mux.HandleFunc("GET /stats", a.getStatistics)

	return middleware.LogMiddleware(a.log)(mux)
}

// Wait blocks until every background computer run has returned.
func (a *API) Wait() {
	a.wg.Wait()
}

// authenticate resolves the calling player from the request token and writes
// a 401 when there is none.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		writeJSON(w, a.log, http.StatusUnauthorized, errorResponse{Error: errMissingToken.Error()})
		return uuid.Nil, false
	}
	playerID, err := a.signer.Authenticate(token)
	if err != nil {
		writeJSON(w, a.log, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return uuid.Nil, false
	}
	return playerID, true
}

// driveComputers plays computer turns for gameID in the background. A call
// made while a run is active makes that run go around once more.
func (a *API) driveComputers(gameID uuid.UUID) {
	a.mu.Lock()
	if _, running := a.driving[gameID]; running {
		a.driving[gameID] = true
		a.mu.Unlock()
		return
	}
	a.driving[gameID] = false
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			played, err := a.engine.RunComputerTurns(a.bg, gameID)
			entry := a.log.WithFields(logrus.Fields{"game_id": gameID, "moves": len(played)})
			if err != nil && !errors.Is(err, context.Canceled) {
				entry.WithError(err).Warn("computer turns stopped")
			} else {
				entry.Debug("computer turns done")
			}

			a.mu.Lock()
			if !a.driving[gameID] || a.bg.Err() != nil {
				delete(a.driving, gameID)
				a.mu.Unlock()
				return
			}
			a.driving[gameID] = false
			a.mu.Unlock()
		}
	}()
}
