package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// Engine-to-client event types.
const (
	EventLobbyRoster       = "lobby_roster"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventUserReadyChanged  = "user_ready_changed"
	EventHostChanged       = "host_changed"
	EventSessionStarted    = "session_started"
	EventCurrentQuestion   = "current_question"
	EventNewQuestion       = "new_question"
	EventTimeUp            = "time_up"
	EventSessionEnded      = "session_ended"
	EventLeaderboardUpdate = "leaderboard_update"
	EventAnswerResult      = "answer_result"
	EventError             = "error"
	EventPong              = "pong"
)

// Reasons carried by session_ended.
const (
	EndReasonCompleted = "completed"
	EndReasonHost      = "ended_by_host"
	EndReasonCancelled = "cancelled"
	EndReasonExpired   = "expired"
)

// RosterPayload lists the active lobby.
type RosterPayload struct {
	HostID       uuid.UUID                  `json:"hostId"`
	Participants []*models.LobbyParticipant `json:"participants"`
}

// UserPayload identifies a user in join/leave/host events.
type UserPayload struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
}

// ReadyPayload is sent when a lobby participant toggles ready.
type ReadyPayload struct {
	UserID  uuid.UUID `json:"userId"`
	IsReady bool      `json:"isReady"`
}

// QuestionView is the participant-facing state of the live question.
type QuestionView struct {
	SessionID       uuid.UUID              `json:"sessionId"`
	Status          models.SessionStatus   `json:"status"`
	QuestionIndex   int                    `json:"questionIndex"`
	TotalQuestions  int                    `json:"totalQuestions"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"`
	RemainingMillis int64                  `json:"remainingMillis"`
	Question        *models.PublicQuestion `json:"question,omitempty"`
	HasAnswered     bool                   `json:"hasAnswered"`
}

// StartedPayload announces the transition to playing.
type StartedPayload struct {
	Session      *models.Session `json:"session"`
	Participants int             `json:"participants"`
}

// TimeUpPayload closes a question.
type TimeUpPayload struct {
	QuestionIndex int       `json:"questionIndex"`
	QuestionID    uuid.UUID `json:"questionId"`
	CorrectAnswer any       `json:"correctAnswer,omitempty"`
}

// EndedPayload carries the final standings.
type EndedPayload struct {
	Reason      string             `json:"reason"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// LeaderboardPayload wraps a leaderboard snapshot.
type LeaderboardPayload struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
