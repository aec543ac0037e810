// internal/game/lobby.go
package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
)

// CreateSession opens a lobby for quizID hosted by host. Only organizers and
// admins may host. settings may be nil for defaults.
func (e *Engine) CreateSession(ctx context.Context, host models.Identity, quizID uuid.UUID, settings *models.Settings) (s *models.Session, err error) {
	ctx, span := e.startSpan(ctx, "CreateSession", uuid.Nil)
	defer func() { endSpan(span, err) }()

	if !host.Role.CanHost() {
		return nil, apperr.New(apperr.CodeForbidden, "only organizers can host sessions")
	}
	quiz, err := e.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, internal(err, "load quiz")
	}
	if len(quiz.Questions) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "quiz has no questions")
	}

	cfg := models.DefaultSettings()
	if settings != nil {
		cfg = *settings
	}
	s, err = session.Create(ctx, quiz, host.UserID, cfg, e.Now(), e.store.CodeExists)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, internal(err, "create session")
	}

	a := e.actors.acquire(s.ID)
	e.record(a, host.UserID, models.ActionSessionCreated, map[string]any{"quizId": quizID, "code": s.Code})
	a.mu.Unlock()

	e.log(s.ID).WithField("code", s.Code).Info("session created")
	return s, nil
}

// JoinLobby adds id to the lobby, or reactivates an existing record. A
// returning participant is let back in even when the lobby is full.
func (e *Engine) JoinLobby(ctx context.Context, sessionID uuid.UUID, id models.Identity) (p *models.LobbyParticipant, err error) {
	ctx, span := e.startSpan(ctx, "JoinLobby", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		now := e.Now()
		existing, err := e.store.GetLobbyParticipant(ctx, sessionID, id.UserID)
		switch {
		case err == nil && s.Status == models.SessionLobby:
			existing.ConnectionStatus = models.Connected
			existing.LastSeen = now
			if err := e.store.UpdateLobbyParticipant(ctx, existing); err != nil {
				return internal(err, "reactivate lobby participant")
			}
			p = existing
			e.sendRoster(ctx, s, id.UserID)
			return nil
		case err != nil && !errors.Is(err, apperr.NotFound):
			return internal(err, "load lobby participant")
		}

		if !session.CanJoin(s) {
			return apperr.Newf(apperr.CodeNotJoinable, "session %s is not joinable", s.Code)
		}
		isHost := id.UserID == s.HostID
		p = &models.LobbyParticipant{
			SessionID:        sessionID,
			UserID:           id.UserID,
			DisplayName:      id.Name,
			Avatar:           id.Avatar,
			IsReady:          isHost,
			IsHost:           isHost,
			ConnectionStatus: models.Connected,
			JoinedAt:         now,
			LastSeen:         now,
		}
		if err := e.store.InsertLobbyParticipant(ctx, p); err != nil {
			return internal(err, "insert lobby participant")
		}
		session.UpdateParticipantCount(s, 1)
		if err := e.saveSession(ctx, s); err != nil {
			_ = e.store.DeleteLobbyParticipant(ctx, sessionID, id.UserID)
			return err
		}

		e.broadcast(sessionID, EventUserJoined, UserPayload{UserID: p.UserID, DisplayName: p.DisplayName, Avatar: p.Avatar})
		e.sendRoster(ctx, s, id.UserID)
		e.record(a, id.UserID, models.ActionLobbyJoin, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetReady toggles a participant's ready flag. Setting the current value is a no-op.
func (e *Engine) SetReady(ctx context.Context, sessionID, userID uuid.UUID, ready bool) (p *models.LobbyParticipant, err error) {
	ctx, span := e.startSpan(ctx, "SetReady", sessionID)
	defer func() { endSpan(span, err) }()

	err = e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		rec, err := e.store.GetLobbyParticipant(ctx, sessionID, userID)
		if err != nil {
			return internal(err, "load lobby participant")
		}
		p = rec
		if rec.IsReady == ready {
			return nil
		}
		rec.IsReady = ready
		rec.LastSeen = e.Now()
		if err := e.store.UpdateLobbyParticipant(ctx, rec); err != nil {
			return internal(err, "update lobby participant")
		}
		e.broadcast(sessionID, EventUserReadyChanged, ReadyPayload{UserID: userID, IsReady: ready})
		e.record(a, userID, models.ActionLobbyReady, map[string]bool{"ready": ready})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LeaveLobby removes userID from the lobby. A departing host hands the role to
// the earliest-joined remaining participant. Insertion order is what the
// store reports and is not otherwise guaranteed. The last one out cancels the
// session.
func (e *Engine) LeaveLobby(ctx context.Context, sessionID, userID uuid.UUID) (err error) {
	ctx, span := e.startSpan(ctx, "LeaveLobby", sessionID)
	defer func() { endSpan(span, err) }()

	return e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		return e.leaveLocked(ctx, a, s, userID)
	})
}

// leaveLocked persists the session change before deleting the lobby record,
// so a failed save leaves the participant seated and the count unchanged.
func (e *Engine) leaveLocked(ctx context.Context, a *sessionActor, s *models.Session, userID uuid.UUID) error {
	rec, err := e.store.GetLobbyParticipant(ctx, s.ID, userID)
	if err != nil {
		return internal(err, "load lobby participant")
	}
	all, err := e.store.ListLobbyParticipants(ctx, s.ID)
	if err != nil {
		return internal(err, "list lobby participants")
	}
	remaining := make([]*models.LobbyParticipant, 0, len(all))
	for _, p := range all {
		if p.UserID != userID {
			remaining = append(remaining, p)
		}
	}

	if len(remaining) == 0 && s.Status == models.SessionLobby {
		if err := e.cancelLocked(ctx, a, s, userID, EndReasonCancelled); err != nil {
			return err
		}
		e.record(a, userID, models.ActionLobbyLeave, nil)
		e.log(s.ID).Info("last participant left, session cancelled")
		return nil
	}

	next := s.Clone()
	session.UpdateParticipantCount(next, -1)
	var promoted *models.LobbyParticipant
	if len(remaining) > 0 && (rec.IsHost || userID == s.HostID) {
		promoted = remaining[0]
		next.HostID = promoted.UserID
	}
	if err := e.saveSession(ctx, next); err != nil {
		return err
	}
	if err := e.store.DeleteLobbyParticipant(ctx, s.ID, userID); err != nil {
		if rerr := e.saveSession(ctx, s); rerr != nil {
			e.log(s.ID).Errorf("restore session after failed leave: %v", rerr)
		}
		return internal(err, "delete lobby participant")
	}
	*s = *next

	e.broadcast(s.ID, EventUserLeft, UserPayload{UserID: userID, DisplayName: rec.DisplayName})
	e.record(a, userID, models.ActionLobbyLeave, nil)

	if promoted != nil {
		promoted.IsHost = true
		promoted.IsReady = true
		if err := e.store.UpdateLobbyParticipant(ctx, promoted); err != nil {
			e.log(s.ID).WithField("host", promoted.UserID).Warnf("flag promoted host: %v", err)
		}
		e.broadcast(s.ID, EventHostChanged, UserPayload{UserID: promoted.UserID, DisplayName: promoted.DisplayName, Avatar: promoted.Avatar})
		e.record(a, promoted.UserID, models.ActionHostChanged, map[string]any{"previous": userID})
		e.log(s.ID).WithField("host", promoted.UserID).Info("host transferred")
	}
	return nil
}

// cancelLocked abandons a lobby session: it is persisted as cancelled, its
// lobby records are cleared and its room is closed.
func (e *Engine) cancelLocked(ctx context.Context, a *sessionActor, s *models.Session, actor uuid.UUID, reason string) error {
	next := s.Clone()
	if err := session.Cancel(next, e.Now()); err != nil {
		return err
	}
	if err := e.saveSession(ctx, next); err != nil {
		return err
	}
	*s = *next
	if err := e.store.DeleteLobbyParticipants(ctx, s.ID); err != nil {
		e.log(s.ID).Warnf("clear cancelled lobby: %v", err)
	}
	e.record(a, actor, models.ActionSessionCancelled, map[string]string{"reason": reason})
	e.broadcast(s.ID, EventSessionEnded, EndedPayload{Reason: reason, Leaderboard: []LeaderboardEntry{}})
	e.dispose(a)
	return nil
}

// ListActive returns the lobby participants that are not disconnected.
func (e *Engine) ListActive(ctx context.Context, sessionID uuid.UUID) ([]*models.LobbyParticipant, error) {
	all, err := e.store.ListLobbyParticipants(ctx, sessionID)
	if err != nil {
		return nil, internal(err, "list lobby participants")
	}
	return activeOnly(all), nil
}

func activeOnly(all []*models.LobbyParticipant) []*models.LobbyParticipant {
	out := make([]*models.LobbyParticipant, 0, len(all))
	for _, p := range all {
		if p.ConnectionStatus != models.Disconnected {
			out = append(out, p)
		}
	}
	return out
}

// MarkDisconnected records a dropped push connection. The participant keeps
// their lobby seat, host role and scoring eligibility.
func (e *Engine) MarkDisconnected(ctx context.Context, sessionID, userID uuid.UUID) error {
	return e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		now := e.Now()
		rec, err := e.store.GetLobbyParticipant(ctx, sessionID, userID)
		if err == nil {
			rec.ConnectionStatus = models.Disconnected
			rec.LastSeen = now
			if err := e.store.UpdateLobbyParticipant(ctx, rec); err != nil {
				return internal(err, "update lobby participant")
			}
			e.broadcastRoster(ctx, s)
			return nil
		}
		if !errors.Is(err, apperr.NotFound) {
			return internal(err, "load lobby participant")
		}

		p, err := e.store.GetGameParticipant(ctx, sessionID, userID)
		if err != nil {
			if errors.Is(err, apperr.NotFound) {
				return nil
			}
			return internal(err, "load participant")
		}
		p.ConnectionStatus = models.Disconnected
		return internal(e.store.UpdateGameParticipant(ctx, p), "update participant")
	})
}

func (e *Engine) roster(ctx context.Context, s *models.Session) (RosterPayload, error) {
	all, err := e.store.ListLobbyParticipants(ctx, s.ID)
	if err != nil {
		return RosterPayload{}, err
	}
	return RosterPayload{HostID: s.HostID, Participants: activeOnly(all)}, nil
}

func (e *Engine) sendRoster(ctx context.Context, s *models.Session, userID uuid.UUID) {
	r, err := e.roster(ctx, s)
	if err != nil {
		e.log(s.ID).Warnf("load roster: %v", err)
		return
	}
	e.sendTo(s.ID, userID, EventLobbyRoster, r)
}

func (e *Engine) broadcastRoster(ctx context.Context, s *models.Session) {
	r, err := e.roster(ctx, s)
	if err != nil {
		e.log(s.ID).Warnf("load roster: %v", err)
		return
	}
	e.broadcast(s.ID, EventLobbyRoster, r)
}
