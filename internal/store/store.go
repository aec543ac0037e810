// Package store defines the document store contract used by the engine.
//
// Implementations return errors matching apperr.NotFound for missing records.
// The engine serializes writes per session, so implementations only need to be
// safe for concurrent use across sessions.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// Store is the full persistence surface of the engine.
type Store interface {
	SessionStore
	QuizStore
	LobbyStore
	ParticipantStore
}

// SessionStore persists session documents.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	UpdateSession(ctx context.Context, s *models.Session) error
	CodeExists(ctx context.Context, code string) (bool, error)
	// ListExpiredSessions returns non-terminal sessions whose ExpiresAt is before now.
	ListExpiredSessions(ctx context.Context, now time.Time) ([]*models.Session, error)
}

// QuizStore reads quiz templates. Questions come back ordered by Position.
type QuizStore interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	SaveQuiz(ctx context.Context, q *models.Quiz) error
}

// LobbyStore persists lobby membership records.
type LobbyStore interface {
	GetLobbyParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.LobbyParticipant, error)
	// ListLobbyParticipants returns records in insertion order.
	ListLobbyParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.LobbyParticipant, error)
	// ListStaleLobbyParticipants returns disconnected records last seen before cutoff.
	ListStaleLobbyParticipants(ctx context.Context, cutoff time.Time) ([]*models.LobbyParticipant, error)
	InsertLobbyParticipant(ctx context.Context, p *models.LobbyParticipant) error
	UpdateLobbyParticipant(ctx context.Context, p *models.LobbyParticipant) error
	DeleteLobbyParticipant(ctx context.Context, sessionID, userID uuid.UUID) error
	DeleteLobbyParticipants(ctx context.Context, sessionID uuid.UUID) error
}

// ParticipantStore persists in-game participant records.
type ParticipantStore interface {
	GetGameParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.GameParticipant, error)
	ListGameParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.GameParticipant, error)
	// InsertGameParticipants inserts all records or none.
	InsertGameParticipants(ctx context.Context, ps []*models.GameParticipant) error
	// DeleteGameParticipants removes the records of userIDs for quizID.
	DeleteGameParticipants(ctx context.Context, quizID uuid.UUID, userIDs []uuid.UUID) error
	UpdateGameParticipant(ctx context.Context, p *models.GameParticipant) error
}
