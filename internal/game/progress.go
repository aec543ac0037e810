package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
)

// AdvanceQuestion is the host's manual advance.
func (e *Engine) AdvanceQuestion(ctx context.Context, sessionID, callerID uuid.UUID) (out *models.Session, err error) {
	ctx, span := e.startSpan(ctx, "AdvanceQuestion", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if err := requireHost(s, callerID); err != nil {
			return err
		}
		a.stopTimer()
		if err := e.advanceLocked(ctx, a, s, callerID); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// advanceLocked moves s to its next question, or finishes it after the last.
// Caller holds the actor lock.
func (e *Engine) advanceLocked(ctx context.Context, a *sessionActor, s *models.Session, actor uuid.UUID) error {
	a.stopTimer()
	next := s.Clone()
	if err := session.Advance(next, e.Now()); err != nil {
		return err
	}
	if err := e.saveSession(ctx, next); err != nil {
		return err
	}
	*s = *next

	if s.Status == models.SessionFinished {
		e.record(a, actor, models.ActionSessionEnded, map[string]string{"reason": EndReasonCompleted})
		e.finishLocked(ctx, a, s, EndReasonCompleted)
		return nil
	}

	e.syncParticipants(ctx, s, models.GamePlaying)
	e.record(a, actor, models.ActionQuestionAdvanced, map[string]int{"questionIndex": s.GameState.CurrentQuestionIndex})

	quiz, err := e.store.GetQuiz(ctx, s.QuizID)
	if err != nil {
		return internal(err, "load quiz")
	}
	e.openQuestion(a, s, quiz)
	return nil
}

// EndSession is the host's early termination. A running game finishes with
// its standings; a lobby that never started is cancelled.
func (e *Engine) EndSession(ctx context.Context, sessionID, callerID uuid.UUID) (out *models.Session, err error) {
	ctx, span := e.startSpan(ctx, "EndSession", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if err := requireHost(s, callerID); err != nil {
			return err
		}
		a.stopTimer()
		if s.Status == models.SessionLobby {
			if err := e.cancelLocked(ctx, a, s, callerID, EndReasonCancelled); err != nil {
				return err
			}
			out = s
			return nil
		}
		if err := e.endLocked(ctx, a, s, callerID, EndReasonHost); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) endLocked(ctx context.Context, a *sessionActor, s *models.Session, actor uuid.UUID, reason string) error {
	next := s.Clone()
	if err := session.End(next, e.Now()); err != nil {
		return err
	}
	if err := e.saveSession(ctx, next); err != nil {
		return err
	}
	*s = *next
	if err := e.store.DeleteLobbyParticipants(ctx, s.ID); err != nil {
		e.log(s.ID).Warnf("clear lobby on end: %v", err)
	}
	e.record(a, actor, models.ActionSessionEnded, map[string]string{"reason": reason})
	e.finishLocked(ctx, a, s, reason)
	return nil
}

// finishLocked publishes the final standings and tears the session down.
func (e *Engine) finishLocked(ctx context.Context, a *sessionActor, s *models.Session, reason string) {
	e.syncParticipants(ctx, s, models.GameFinished)
	board, err := e.leaderboard(ctx, s.ID)
	if err != nil {
		e.log(s.ID).Warnf("final leaderboard: %v", err)
		board = []LeaderboardEntry{}
	}
	e.broadcast(s.ID, EventSessionEnded, EndedPayload{Reason: reason, Leaderboard: board})
	e.log(s.ID).WithField("reason", reason).Info("session ended")
	e.dispose(a)
}

// syncParticipants aligns every participant with the session cursor.
func (e *Engine) syncParticipants(ctx context.Context, s *models.Session, status models.GameStatus) {
	ps, err := e.store.ListGameParticipants(ctx, s.ID)
	if err != nil {
		e.log(s.ID).Warnf("list participants: %v", err)
		return
	}
	for _, p := range ps {
		p.CurrentQuestionIndex = s.GameState.CurrentQuestionIndex
		p.GameStatus = status
		if err := e.store.UpdateGameParticipant(ctx, p); err != nil {
			e.log(s.ID).WithField("user", p.UserID).Warnf("sync participant: %v", err)
		}
	}
}
