package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
)

// buildView renders the live question with the time left on the server clock.
func (e *Engine) buildView(s *models.Session, q *models.Question, answered bool) QuestionView {
	v := QuestionView{
		SessionID:      s.ID,
		Status:         s.Status,
		QuestionIndex:  s.GameState.CurrentQuestionIndex,
		TotalQuestions: s.GameState.TotalQuestions,
		StartedAt:      s.GameState.CurrentQuestionStartedAt,
		HasAnswered:    answered,
	}
	if q == nil {
		return v
	}
	pub := q.Public(s.GameState.CurrentQuestionIndex, s.Settings.SecondsPerQuestion)
	v.Question = &pub
	remaining := e.QuestionDuration(q, s) - session.QuestionElapsed(s, e.Now())
	if remaining > 0 {
		v.RemainingMillis = remaining.Milliseconds()
	}
	return v
}

// questionView is what userID should see right now. Caller holds the actor lock.
func (e *Engine) questionView(ctx context.Context, s *models.Session, userID uuid.UUID) (QuestionView, error) {
	if s.Status != models.SessionPlaying {
		return e.buildView(s, nil, false), nil
	}
	quiz, err := e.store.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return QuestionView{}, internal(err, "load quiz")
	}
	q := quiz.QuestionAt(s.GameState.CurrentQuestionIndex)
	if q == nil {
		return QuestionView{}, apperr.QuestionNotFound
	}

	answered := false
	p, err := e.store.GetGameParticipant(ctx, s.ID, userID)
	switch {
	case err == nil:
		_, answered = p.AnswerFor(s.GameState.CurrentQuestionIndex)
	case !errors.Is(err, apperr.NotFound):
		return QuestionView{}, internal(err, "load participant")
	}
	return e.buildView(s, q, answered), nil
}

// CurrentQuestion returns the live question for userID without correctness data.
func (e *Engine) CurrentQuestion(ctx context.Context, sessionID, userID uuid.UUID) (view QuestionView, err error) {
	ctx, span := e.startSpan(ctx, "CurrentQuestion", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(_ *sessionActor, s *models.Session) error {
		if s.Status != models.SessionPlaying {
			return apperr.Newf(apperr.CodeSessionNotPlaying, "session is %s", s.Status)
		}
		view, err = e.questionView(ctx, s, userID)
		return err
	})
	return view, err
}
