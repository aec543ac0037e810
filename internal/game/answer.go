package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/scoring"
	"github.com/jason-s-yu/quizlive/internal/session"
)

// AnswerResult is returned to the submitter only.
type AnswerResult struct {
	QuestionID      uuid.UUID `json:"questionId"`
	QuestionIndex   int       `json:"questionIndex"`
	IsCorrect       bool      `json:"isCorrect"`
	Points          int       `json:"points"`
	TotalScore      int       `json:"totalScore"`
	TimeSpentMillis int64     `json:"timeSpentMillis"`
	CorrectAnswer   any       `json:"correctAnswer,omitempty"`
}

// SubmitAnswer scores userID's answer to the live question. questionID may be
// uuid.Nil to mean "the current question". Each participant is credited at
// most once per question index.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, userID, questionID uuid.UUID, value models.AnswerValue) (res *AnswerResult, err error) {
	ctx, span := e.startSpan(ctx, "SubmitAnswer", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if s.Status != models.SessionPlaying {
			return apperr.Newf(apperr.CodeSessionNotPlaying, "session is %s", s.Status)
		}
		p, err := e.store.GetGameParticipant(ctx, sessionID, userID)
		if errors.Is(err, apperr.NotFound) {
			return apperr.NotParticipant
		} else if err != nil {
			return internal(err, "load participant")
		}

		index := s.GameState.CurrentQuestionIndex
		if _, done := p.AnswerFor(index); done {
			return apperr.AlreadyAnswered
		}

		quiz, err := e.store.GetQuiz(ctx, s.QuizID)
		if err != nil {
			return internal(err, "load quiz")
		}
		q := quiz.QuestionAt(index)
		if q == nil || (questionID != uuid.Nil && questionID != q.ID) {
			return apperr.QuestionNotFound
		}

		now := e.Now()
		elapsed := session.QuestionElapsed(s, now).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		result := scoring.Score(q, value, elapsed, s.Settings)

		next := p.Clone()
		next.Answers = append(next.Answers, models.Answer{
			QuestionID:      q.ID,
			QuestionIndex:   index,
			Value:           value,
			SubmittedAt:     now,
			IsCorrect:       result.IsCorrect,
			Points:          result.Points,
			TimeSpentMillis: elapsed,
		})
		next.TotalScore += result.Points
		next.LastActivity = now
		next.LastQuestionAnsweredAt = &now
		next.GameStatus = models.GameWaiting
		next.CurrentQuestionIndex = index
		if err := e.store.UpdateGameParticipant(ctx, next); err != nil {
			return internal(err, "save answer")
		}

		res = &AnswerResult{
			QuestionID:      q.ID,
			QuestionIndex:   index,
			IsCorrect:       result.IsCorrect,
			Points:          result.Points,
			TotalScore:      next.TotalScore,
			TimeSpentMillis: elapsed,
		}
		if s.Settings.ShowCorrectAnswers {
			res.CorrectAnswer = scoring.CorrectAnswer(q)
		}

		e.sendTo(sessionID, userID, EventAnswerResult, res)
		if board, err := e.leaderboard(ctx, sessionID); err == nil {
			e.broadcast(sessionID, EventLeaderboardUpdate, LeaderboardPayload{Leaderboard: board})
		} else {
			e.log(sessionID).Warnf("leaderboard after answer: %v", err)
		}
		e.record(a, userID, models.ActionAnswerSubmitted, map[string]any{
			"questionIndex": index,
			"isCorrect":     result.IsCorrect,
			"points":        result.Points,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
