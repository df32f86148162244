// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

const authCookieName = "auth_token"

var errMissingToken = errors.New("missing auth token")

// tokenFromRequest looks for a bearer token, then the auth cookie, then a
// "token" query parameter for browser websocket clients.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(authCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, logger logrus.FieldLogger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrGameNotFound), errors.Is(err, game.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidMove),
		errors.Is(err, game.ErrNotPlayersTurn),
		errors.Is(err, game.ErrCardNotInHand),
		errors.Is(err, game.ErrInvalidPlayer),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrTooManyPlayers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrGameFinished), errors.Is(err, game.ErrDeckExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, logger, status, errorResponse{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: err.Error()})
}
