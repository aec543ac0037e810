// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	SessionLobby     SessionStatus = "lobby"
	SessionPlaying   SessionStatus = "playing"
	SessionFinished  SessionStatus = "finished"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionFinished || s == SessionCancelled
}

const (
	// MaxParticipantsCap is the hard ceiling applied to Settings.MaxParticipants.
	MaxParticipantsCap = 100

	DefaultMaxParticipants    = 100
	DefaultSecondsPerQuestion = 30

	// SessionTTL bounds how long an unattended session may live.
	SessionTTL = 24 * time.Hour
)

// Settings are chosen by the host when the session is created.
type Settings struct {
	MaxParticipants    int  `json:"maxParticipants"`
	SecondsPerQuestion int  `json:"secondsPerQuestion"`
	ShowCorrectAnswers bool `json:"showCorrectAnswers"`
	AllowLateJoin      bool `json:"allowLateJoin"`
}

// DefaultSettings returns the settings applied when the host sends none.
func DefaultSettings() Settings {
	return Settings{
		MaxParticipants:    DefaultMaxParticipants,
		SecondsPerQuestion: DefaultSecondsPerQuestion,
		ShowCorrectAnswers: true,
		AllowLateJoin:      false,
	}
}

// Normalize fills zero values with defaults and clamps MaxParticipants to the cap.
func (s Settings) Normalize() Settings {
	switch {
	case s.MaxParticipants <= 0:
		s.MaxParticipants = DefaultMaxParticipants
	case s.MaxParticipants > MaxParticipantsCap:
		s.MaxParticipants = MaxParticipantsCap
	}
	if s.SecondsPerQuestion <= 0 {
		s.SecondsPerQuestion = DefaultSecondsPerQuestion
	}
	return s
}

// GameState is the question cursor of a session.
type GameState struct {
	CurrentQuestionIndex     int        `json:"currentQuestionIndex"`
	CurrentQuestionStartedAt *time.Time `json:"currentQuestionStartedAt,omitempty"`
	TotalQuestions           int        `json:"totalQuestions"`
}

// Session is one live play-through of a quiz.
type Session struct {
	ID               uuid.UUID     `json:"id"`
	QuizID           uuid.UUID     `json:"quizId"`
	HostID           uuid.UUID     `json:"hostId"`
	Code             string        `json:"code"`
	Status           SessionStatus `json:"status"`
	Settings         Settings      `json:"settings"`
	GameState        GameState     `json:"gameState"`
	ParticipantCount int           `json:"participantCount"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.GameState.CurrentQuestionStartedAt = cloneTime(s.GameState.CurrentQuestionStartedAt)
	c.StartedAt = cloneTime(s.StartedAt)
	c.FinishedAt = cloneTime(s.FinishedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
