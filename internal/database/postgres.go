package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/store"
)

//go:embed schema.sql
var schema string

// Store is the postgres implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for components sharing the connection.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Newf(apperr.CodeNotFound, format, args...)
	}
	return err
}

const sessionColumns = `
	id, quiz_id, host_id, code, status, settings,
	current_question_index, current_question_started_at, total_questions,
	participant_count, created_at, started_at, finished_at, expires_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		sess     models.Session
		settings []byte
	)
	err := row.Scan(
		&sess.ID, &sess.QuizID, &sess.HostID, &sess.Code, &sess.Status, &settings,
		&sess.GameState.CurrentQuestionIndex, &sess.GameState.CurrentQuestionStartedAt, &sess.GameState.TotalQuestions,
		&sess.ParticipantCount, &sess.CreatedAt, &sess.StartedAt, &sess.FinishedAt, &sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &sess.Settings); err != nil {
		return nil, fmt.Errorf("decode session settings: %w", err)
	}
	return &sess, nil
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	settings, err := json.Marshal(sess.Settings)
	if err != nil {
		return err
	}
	q := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			sess.ID, sess.QuizID, sess.HostID, sess.Code, sess.Status, settings,
			sess.GameState.CurrentQuestionIndex, sess.GameState.CurrentQuestionStartedAt, sess.GameState.TotalQuestions,
			sess.ParticipantCount, sess.CreatedAt, sess.StartedAt, sess.FinishedAt, sess.ExpiresAt,
		)
		return err
	})
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "session %s not found", id)
	}
	return sess, nil
}

// GetSessionByCode fetches a session by join code.
func (s *Store) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE code = $1`, code)
	sess, err := scanSession(row)
	if err != nil {
		return nil, notFound(err, "session %s not found", code)
	}
	return sess, nil
}

// UpdateSession writes every mutable session column.
func (s *Store) UpdateSession(ctx context.Context, sess *models.Session) error {
	settings, err := json.Marshal(sess.Settings)
	if err != nil {
		return err
	}
	q := `
		UPDATE sessions
		SET host_id = $2, status = $3, settings = $4,
		    current_question_index = $5, current_question_started_at = $6, total_questions = $7,
		    participant_count = $8, started_at = $9, finished_at = $10, expires_at = $11
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q,
		sess.ID, sess.HostID, sess.Status, settings,
		sess.GameState.CurrentQuestionIndex, sess.GameState.CurrentQuestionStartedAt, sess.GameState.TotalQuestions,
		sess.ParticipantCount, sess.StartedAt, sess.FinishedAt, sess.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeNotFound, "session %s not found", sess.ID)
	}
	return nil
}

// CodeExists reports whether a join code has ever been allocated.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// ListExpiredSessions returns lobby or playing sessions past their expiry.
func (s *Store) ListExpiredSessions(ctx context.Context, now time.Time) ([]*models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status IN ('lobby', 'playing') AND expires_at < $1
		 ORDER BY expires_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// GetQuiz loads a quiz with its questions ordered by position.
func (s *Store) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	quiz := &models.Quiz{}
	err := s.pool.QueryRow(ctx, `SELECT id, owner_id, title FROM quizzes WHERE id = $1`, id).
		Scan(&quiz.ID, &quiz.OwnerID, &quiz.Title)
	if err != nil {
		return nil, notFound(err, "quiz %s not found", id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, position, type, text, options, points, time_given, image_url
		FROM questions WHERE quiz_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       models.Question
			qType   string
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &qType, &q.Text, &options, &q.Points, &q.TimeGiven, &q.ImageURL); err != nil {
			return nil, err
		}
		q.Type = models.QuestionType(qType)
		if !q.Type.Valid() {
			return nil, fmt.Errorf("question %s has unknown type %q", q.ID, qType)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode question options: %w", err)
		}
		quiz.Questions = append(quiz.Questions, &q)
	}
	return quiz, rows.Err()
}

// SaveQuiz upserts a quiz and replaces its questions.
func (s *Store) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quizzes (id, owner_id, title) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, title = EXCLUDED.title`,
			quiz.ID, quiz.OwnerID, quiz.Title)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quiz.ID); err != nil {
			return err
		}
		for _, q := range quiz.Questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO questions (id, quiz_id, position, type, text, options, points, time_given, image_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				q.ID, quiz.ID, q.Position, string(q.Type), q.Text, options, q.Points, q.TimeGiven, q.ImageURL)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
