// internal/game/timer.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/scoring"
)

// callbackTimeout bounds store I/O done from a timer callback.
const callbackTimeout = 10 * time.Second

// openQuestion arms the timer for the current question and announces it.
// Caller holds the actor lock and has persisted s.
func (e *Engine) openQuestion(a *sessionActor, s *models.Session, quiz *models.Quiz) {
	q := quiz.QuestionAt(s.GameState.CurrentQuestionIndex)
	if q == nil {
		e.log(s.ID).Errorf("no question at index %d", s.GameState.CurrentQuestionIndex)
		return
	}
	e.armTimer(a, s, q)
	e.broadcast(s.ID, EventNewQuestion, e.buildView(s, q, false))
}

// armTimer replaces any pending timer with one for q. Caller holds the actor lock.
func (e *Engine) armTimer(a *sessionActor, s *models.Session, q *models.Question) {
	a.stopTimer()
	d := e.QuestionDuration(q, s)
	id, index := s.ID, s.GameState.CurrentQuestionIndex
	a.schedule(d, func(gen int) { e.onTimeUp(id, index, gen) })
}

// onTimeUp closes the question and schedules the grace-delayed advance.
func (e *Engine) onTimeUp(sessionID uuid.UUID, index, gen int) {
	a := e.actors.lookup(sessionID)
	if a == nil {
		return
	}
	defer a.mu.Unlock()
	if a.generation != gen {
		return
	}
	a.timer = nil

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	log := e.log(sessionID).WithField("question", index)

	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Errorf("time up: load session: %v", err)
		return
	}
	if s.Status != models.SessionPlaying || s.GameState.CurrentQuestionIndex != index {
		return
	}

	payload := TimeUpPayload{QuestionIndex: index}
	if quiz, err := e.store.GetQuiz(ctx, s.QuizID); err == nil {
		if q := quiz.QuestionAt(index); q != nil {
			payload.QuestionID = q.ID
			if s.Settings.ShowCorrectAnswers {
				payload.CorrectAnswer = scoring.CorrectAnswer(q)
			}
		}
	} else {
		log.Warnf("time up: load quiz: %v", err)
	}
	e.broadcast(sessionID, EventTimeUp, payload)
	log.Debug("question time up")

	a.schedule(e.GracePeriod, func(gen int) { e.onGraceElapsed(sessionID, index, gen) })
}

// onGraceElapsed performs the automatic advance.
func (e *Engine) onGraceElapsed(sessionID uuid.UUID, index, gen int) {
	a := e.actors.lookup(sessionID)
	if a == nil {
		return
	}
	defer a.mu.Unlock()
	if a.generation != gen {
		return
	}
	a.timer = nil

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	log := e.log(sessionID).WithField("question", index)

	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Errorf("auto advance: load session: %v", err)
		return
	}
	if s.Status != models.SessionPlaying || s.GameState.CurrentQuestionIndex != index {
		return
	}
	if err := e.advanceLocked(ctx, a, s, uuid.Nil); err != nil {
		log.Errorf("auto advance: %v", err)
	}
}
