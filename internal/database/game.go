// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
)

const participantColumns = `
	id, session_id, quiz_id, user_id, display_name, avatar,
	current_question_index, total_score, game_status, connection_status,
	answers, last_activity, last_question_answered_at`

func scanGameParticipant(row pgx.Row) (*models.GameParticipant, error) {
	var (
		p       models.GameParticipant
		answers []byte
	)
	err := row.Scan(
		&p.ID, &p.SessionID, &p.QuizID, &p.UserID, &p.DisplayName, &p.Avatar,
		&p.CurrentQuestionIndex, &p.TotalScore, &p.GameStatus, &p.ConnectionStatus,
		&answers, &p.LastActivity, &p.LastQuestionAnsweredAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &p.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &p, nil
}

func marshalAnswers(answers []models.Answer) ([]byte, error) {
	if answers == nil {
		answers = []models.Answer{}
	}
	return json.Marshal(answers)
}

// GetGameParticipant fetches a participant of a session.
func (s *Store) GetGameParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.GameParticipant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM game_participants WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	p, err := scanGameParticipant(row)
	if err != nil {
		return nil, notFound(err, "participant %s not found", userID)
	}
	return p, nil
}

// ListGameParticipants returns every participant of a session in insertion order.
func (s *Store) ListGameParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.GameParticipant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+participantColumns+` FROM game_participants WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.GameParticipant
	for rows.Next() {
		p, err := scanGameParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertGameParticipants bulk inserts participants in a single transaction.
func (s *Store) InsertGameParticipants(ctx context.Context, ps []*models.GameParticipant) error {
	q := `INSERT INTO game_participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range ps {
			answers, err := marshalAnswers(p.Answers)
			if err != nil {
				return err
			}
			batch.Queue(q,
				p.ID, p.SessionID, p.QuizID, p.UserID, p.DisplayName, p.Avatar,
				p.CurrentQuestionIndex, p.TotalScore, p.GameStatus, p.ConnectionStatus,
				answers, p.LastActivity, p.LastQuestionAnsweredAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert game participants: %w", err)
	}
	return nil
}

// DeleteGameParticipants removes prior records of userIDs for a quiz.
func (s *Store) DeleteGameParticipants(ctx context.Context, quizID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM game_participants WHERE quiz_id = $1 AND user_id = ANY($2)`, quizID, userIDs)
	return err
}

// UpdateGameParticipant writes progress, score and answers.
func (s *Store) UpdateGameParticipant(ctx context.Context, p *models.GameParticipant) error {
	answers, err := marshalAnswers(p.Answers)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_participants
		SET display_name = $3, avatar = $4, current_question_index = $5, total_score = $6,
		    game_status = $7, connection_status = $8, answers = $9,
		    last_activity = $10, last_question_answered_at = $11
		WHERE session_id = $1 AND user_id = $2`,
		p.SessionID, p.UserID, p.DisplayName, p.Avatar, p.CurrentQuestionIndex, p.TotalScore,
		p.GameStatus, p.ConnectionStatus, answers, p.LastActivity, p.LastQuestionAnsweredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeNotFound, "participant %s not found", p.UserID)
	}
	return nil
}
