// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Application close codes sent before the session stream starts.
const (
	BadSubprotocolError     websocket.StatusCode = 3000 // Client did not negotiate the quiz subprotocol.
	InvalidAuthTokenError   websocket.StatusCode = 3001 // Identity could not be established.
	InvalidSessionCodeError websocket.StatusCode = 3003 // No session with the code in the URL.
	SessionClosedError      websocket.StatusCode = 3004 // The session already finished or was cancelled.
)
