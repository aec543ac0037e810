// Package session implements the live session state machine.
//
// Transitions are pure: they mutate the passed *models.Session and return an
// error when the transition is not allowed. Persisting the result and
// serializing concurrent callers is the engine's job.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// Create builds a new session in the lobby state for quiz, owned by hostID.
func Create(ctx context.Context, quiz *models.Quiz, hostID uuid.UUID, settings models.Settings, now time.Time, exists CodeExistsFunc) (*models.Session, error) {
	if quiz == nil {
		return nil, apperr.New(apperr.CodeInvalidArgument, "quiz is required")
	}
	code, err := GenerateCode(ctx, exists)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "generate session id")
	}
	return &models.Session{
		ID:       id,
		QuizID:   quiz.ID,
		HostID:   hostID,
		Code:     code,
		Status:   models.SessionLobby,
		Settings: settings.Normalize(),
		GameState: models.GameState{
			CurrentQuestionIndex: 0,
			TotalQuestions:       len(quiz.Questions),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(models.SessionTTL),
	}, nil
}

// CanJoin reports whether a new lobby participant may join.
func CanJoin(s *models.Session) bool {
	return s.Status == models.SessionLobby && s.ParticipantCount < s.Settings.MaxParticipants
}

// CanLateJoin reports whether a new participant may enter a running game.
func CanLateJoin(s *models.Session) bool {
	return s.Status == models.SessionPlaying && s.Settings.AllowLateJoin
}

// Start moves a lobby session to playing on its first question.
func Start(s *models.Session, now time.Time) error {
	if s.Status != models.SessionLobby {
		return apperr.Newf(apperr.CodeInvalidTransition, "cannot start a %s session", s.Status)
	}
	s.Status = models.SessionPlaying
	s.StartedAt = &now
	s.GameState.CurrentQuestionIndex = 0
	started := now
	s.GameState.CurrentQuestionStartedAt = &started
	return nil
}

// Advance moves to the next question, finishing the session past the last one.
func Advance(s *models.Session, now time.Time) error {
	if s.Status != models.SessionPlaying {
		return apperr.Newf(apperr.CodeInvalidTransition, "cannot advance a %s session", s.Status)
	}
	s.GameState.CurrentQuestionIndex++
	if s.GameState.CurrentQuestionIndex >= s.GameState.TotalQuestions {
		s.GameState.CurrentQuestionIndex = s.GameState.TotalQuestions
		s.GameState.CurrentQuestionStartedAt = nil
		s.Status = models.SessionFinished
		s.FinishedAt = &now
		return nil
	}
	started := now
	s.GameState.CurrentQuestionStartedAt = &started
	return nil
}

// End is the host's early termination of a running game. A lobby that never
// started is cancelled instead.
func End(s *models.Session, now time.Time) error {
	if s.Status != models.SessionPlaying {
		return apperr.Newf(apperr.CodeInvalidTransition, "cannot end a %s session", s.Status)
	}
	s.Status = models.SessionFinished
	s.GameState.CurrentQuestionStartedAt = nil
	s.FinishedAt = &now
	return nil
}

// Cancel abandons a session that never started.
func Cancel(s *models.Session, now time.Time) error {
	if s.Status != models.SessionLobby {
		return apperr.Newf(apperr.CodeInvalidTransition, "cannot cancel a %s session", s.Status)
	}
	s.Status = models.SessionCancelled
	s.FinishedAt = &now
	return nil
}

// UpdateParticipantCount applies delta, never going below zero.
func UpdateParticipantCount(s *models.Session, delta int) {
	s.ParticipantCount += delta
	if s.ParticipantCount < 0 {
		s.ParticipantCount = 0
	}
}

// Expired reports whether s outlived its TTL.
func Expired(s *models.Session, now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// QuestionElapsed is the time since the current question started on the server clock.
func QuestionElapsed(s *models.Session, now time.Time) time.Duration {
	if s.GameState.CurrentQuestionStartedAt == nil {
		return 0
	}
	return now.Sub(*s.GameState.CurrentQuestionStartedAt)
}
