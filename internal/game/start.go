package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
)

func requireHost(s *models.Session, callerID uuid.UUID) error {
	if s.HostID != callerID {
		return apperr.New(apperr.CodeForbidden, "only the host can do that")
	}
	return nil
}

// StartSession migrates the connected lobby into game participants and opens
// the first question.
func (e *Engine) StartSession(ctx context.Context, sessionID, callerID uuid.UUID) (out *models.Session, err error) {
	ctx, span := e.startSpan(ctx, "StartSession", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if err := requireHost(s, callerID); err != nil {
			return err
		}
		if s.Status != models.SessionLobby {
			return apperr.Newf(apperr.CodeInvalidTransition, "cannot start a %s session", s.Status)
		}

		all, err := e.store.ListLobbyParticipants(ctx, sessionID)
		if err != nil {
			return internal(err, "list lobby participants")
		}
		active := activeOnly(all)
		ready := 0
		for _, p := range active {
			if p.IsReady {
				ready++
			}
		}
		connected := connectedOnly(all)
		if ready == 0 || len(connected) == 0 {
			return apperr.NotEnoughReady
		}

		quiz, err := e.store.GetQuiz(ctx, s.QuizID)
		if err != nil {
			return internal(err, "load quiz")
		}

		migrated, err := e.migrate(ctx, s, connected)
		if err != nil {
			return err
		}

		next := s.Clone()
		now := e.Now()
		if err := session.Start(next, now); err != nil {
			return err
		}
		next.GameState.TotalQuestions = len(quiz.Questions)
		next.ParticipantCount = len(migrated)
		if err := e.saveSession(ctx, next); err != nil {
			e.rollbackMigration(ctx, s, migrated)
			return err
		}
		*s = *next

		if err := e.store.DeleteLobbyParticipants(ctx, sessionID); err != nil {
			e.log(sessionID).Warnf("clear lobby after start: %v", err)
		}

		e.broadcast(sessionID, EventSessionStarted, StartedPayload{Session: s.Clone(), Participants: len(migrated)})
		e.openQuestion(a, s, quiz)
		e.record(a, callerID, models.ActionSessionStarted, map[string]int{"participants": len(migrated)})
		e.log(sessionID).WithField("participants", len(migrated)).Info("session started")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetSession(ctx, sessionID)
}

// connectedOnly is the migration set: a participant still negotiating its
// push connection stays behind.
func connectedOnly(all []*models.LobbyParticipant) []*models.LobbyParticipant {
	out := make([]*models.LobbyParticipant, 0, len(all))
	for _, p := range all {
		if p.ConnectionStatus == models.Connected {
			out = append(out, p)
		}
	}
	return out
}

// migrate replaces any prior game records of the given users for this quiz
// with fresh ones. Nothing is written to the session here.
func (e *Engine) migrate(ctx context.Context, s *models.Session, active []*models.LobbyParticipant) ([]*models.GameParticipant, error) {
	now := e.Now()
	userIDs := make([]uuid.UUID, 0, len(active))
	rows := make([]*models.GameParticipant, 0, len(active))
	for _, lp := range active {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "generate participant id")
		}
		userIDs = append(userIDs, lp.UserID)
		rows = append(rows, &models.GameParticipant{
			ID:                   id,
			SessionID:            s.ID,
			QuizID:               s.QuizID,
			UserID:               lp.UserID,
			DisplayName:          lp.DisplayName,
			Avatar:               lp.Avatar,
			CurrentQuestionIndex: 0,
			TotalScore:           0,
			GameStatus:           models.GamePlaying,
			ConnectionStatus:     lp.ConnectionStatus,
			Answers:              []models.Answer{},
			LastActivity:         now,
		})
	}

	if err := e.store.DeleteGameParticipants(ctx, s.QuizID, userIDs); err != nil {
		return nil, internal(err, "clear previous participants")
	}
	if err := e.store.InsertGameParticipants(ctx, rows); err != nil {
		return nil, internal(err, "insert participants")
	}
	return rows, nil
}

func (e *Engine) rollbackMigration(ctx context.Context, s *models.Session, rows []*models.GameParticipant) {
	userIDs := make([]uuid.UUID, len(rows))
	for i, p := range rows {
		userIDs[i] = p.UserID
	}
	if err := e.store.DeleteGameParticipants(ctx, s.QuizID, userIDs); err != nil {
		e.log(s.ID).Errorf("rollback migrated participants: %v", err)
	}
}

// JoinGame enters a running game: reconnecting participants are reactivated,
// newcomers are admitted only when late join is allowed.
func (e *Engine) JoinGame(ctx context.Context, sessionID uuid.UUID, id models.Identity) (p *models.GameParticipant, err error) {
	ctx, span := e.startSpan(ctx, "JoinGame", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if s.Status != models.SessionPlaying {
			return apperr.Newf(apperr.CodeSessionNotPlaying, "session is %s", s.Status)
		}
		now := e.Now()

		existing, err := e.store.GetGameParticipant(ctx, sessionID, id.UserID)
		switch {
		case err == nil:
			existing.ConnectionStatus = models.Connected
			existing.LastActivity = now
			if err := e.store.UpdateGameParticipant(ctx, existing); err != nil {
				return internal(err, "reactivate participant")
			}
			p = existing
		case errors.Is(err, apperr.NotFound):
			if !session.CanLateJoin(s) || s.ParticipantCount >= s.Settings.MaxParticipants {
				return apperr.New(apperr.CodeNotJoinable, "late join is not allowed for this session")
			}
			pid, err := uuid.NewV7()
			if err != nil {
				return apperr.Wrap(apperr.CodeInternal, err, "generate participant id")
			}
			p = &models.GameParticipant{
				ID:                   pid,
				SessionID:            sessionID,
				QuizID:               s.QuizID,
				UserID:               id.UserID,
				DisplayName:          id.Name,
				Avatar:               id.Avatar,
				CurrentQuestionIndex: s.GameState.CurrentQuestionIndex,
				GameStatus:           models.GamePlaying,
				ConnectionStatus:     models.Connected,
				Answers:              []models.Answer{},
				LastActivity:         now,
			}
			if err := e.store.DeleteGameParticipants(ctx, s.QuizID, []uuid.UUID{id.UserID}); err != nil {
				return internal(err, "clear previous participant")
			}
			if err := e.store.InsertGameParticipants(ctx, []*models.GameParticipant{p}); err != nil {
				return internal(err, "insert participant")
			}
			session.UpdateParticipantCount(s, 1)
			if err := e.saveSession(ctx, s); err != nil {
				e.rollbackMigration(ctx, s, []*models.GameParticipant{p})
				return err
			}
			e.broadcast(sessionID, EventUserJoined, UserPayload{UserID: p.UserID, DisplayName: p.DisplayName, Avatar: p.Avatar})
			e.record(a, id.UserID, models.ActionGameJoin, map[string]int{"questionIndex": p.CurrentQuestionIndex})
		default:
			return internal(err, "load participant")
		}

		if view, err := e.questionView(ctx, s, id.UserID); err == nil {
			e.sendTo(sessionID, id.UserID, EventCurrentQuestion, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
