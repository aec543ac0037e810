// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus tracks the push-channel presence of a participant.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Connecting   ConnectionStatus = "connecting"
	Disconnected ConnectionStatus = "disconnected"
)

// LobbyStaleTTL is how long a disconnected lobby record survives without being seen.
const LobbyStaleTTL = 5 * time.Minute

// LobbyParticipant is one user's membership in a session's pre-game lobby.
// Unique per (SessionID, UserID).
type LobbyParticipant struct {
	SessionID        uuid.UUID        `json:"sessionId"`
	UserID           uuid.UUID        `json:"userId"`
	DisplayName      string           `json:"displayName"`
	Avatar           string           `json:"avatar,omitempty"`
	IsReady          bool             `json:"isReady"`
	IsHost           bool             `json:"isHost"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	JoinedAt         time.Time        `json:"joinedAt"`
	LastSeen         time.Time        `json:"lastSeen"`
}

// Clone returns a copy of the record.
func (p *LobbyParticipant) Clone() *LobbyParticipant {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
