// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game handler.
const (
	BadSubprotocolError  = 3000 // Client connected with an unsupported subprotocol.
	InvalidPlayerIDError = 3002 // Player from the token is not seated in the game.
	InvalidGameIDError   = 3003 // Game in the WS URL no longer exists.
)
