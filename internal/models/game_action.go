package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action types recorded in the session action log.
const (
	ActionSessionCreated   = "session_created"
	ActionLobbyJoin        = "lobby_join"
	ActionLobbyReady       = "lobby_ready"
	ActionLobbyLeave       = "lobby_leave"
	ActionHostChanged      = "host_changed"
	ActionSessionStarted   = "session_started"
	ActionGameJoin         = "game_join"
	ActionAnswerSubmitted  = "answer_submitted"
	ActionQuestionAdvanced = "question_advanced"
	ActionSessionEnded     = "session_ended"
	ActionSessionCancelled = "session_cancelled"
)

// ActionRecord is one state change captured for the historian.
type ActionRecord struct {
	SessionID   uuid.UUID       `json:"session_id"`
	ActionIndex int             `json:"action_index"`
	ActorUserID uuid.UUID       `json:"actor_user_id"`
	ActionType  string          `json:"action_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// NewActionRecord builds a record, marshalling payload best-effort.
func NewActionRecord(sessionID, actor uuid.UUID, index int, actionType string, payload any, at time.Time) ActionRecord {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	return ActionRecord{
		SessionID:   sessionID,
		ActionIndex: index,
		ActorUserID: actor,
		ActionType:  actionType,
		Payload:     raw,
		Timestamp:   at.UnixMilli(),
	}
}
