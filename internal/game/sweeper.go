package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
	"github.com/sirupsen/logrus"
)

// SweepResult counts what one sweep cleaned up.
type SweepResult struct {
	ExpiredSessions int
	StaleLobby      int
}

// Sweep ends sessions past their TTL and drops lobby records that have been
// disconnected for longer than models.LobbyStaleTTL.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	expired, err := e.store.ListExpiredSessions(ctx, now)
	if err != nil {
		return res, internal(err, "list expired sessions")
	}
	for _, s := range expired {
		if err := e.expire(ctx, s.ID, now); err != nil {
			e.log(s.ID).Warnf("expire session: %v", err)
			continue
		}
		res.ExpiredSessions++
	}

	stale, err := e.store.ListStaleLobbyParticipants(ctx, now.Add(-models.LobbyStaleTTL))
	if err != nil {
		return res, internal(err, "list stale lobby participants")
	}
	for _, p := range stale {
		dropped := false
		err := e.withSession(ctx, p.SessionID, func(a *sessionActor, s *models.Session) error {
			// the participant may have reconnected since the listing
			cur, err := e.store.GetLobbyParticipant(ctx, s.ID, p.UserID)
			if err != nil || cur.ConnectionStatus != models.Disconnected {
				return nil
			}
			dropped = true
			return e.leaveLocked(ctx, a, s, p.UserID)
		})
		if err != nil {
			e.log(p.SessionID).WithField("user", p.UserID).Warnf("drop stale lobby participant: %v", err)
			continue
		}
		if dropped {
			res.StaleLobby++
		}
	}
	return res, nil
}

func (e *Engine) expire(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	return e.withSession(ctx, sessionID, func(a *sessionActor, s *models.Session) error {
		if s.Status.Terminal() || !session.Expired(s, now) {
			return nil
		}
		a.stopTimer()
		if s.Status == models.SessionLobby {
			return e.cancelLocked(ctx, a, s, uuid.Nil, EndReasonExpired)
		}
		return e.endLocked(ctx, a, s, uuid.Nil, EndReasonExpired)
	})
}

// RunSweeper sweeps every interval until ctx is done. A non-positive
// interval means once a minute.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := e.Sweep(ctx, e.Now())
			if err != nil {
				e.logger.Errorf("sweep: %v", err)
				continue
			}
			if res.ExpiredSessions > 0 || res.StaleLobby > 0 {
				e.logger.WithFields(logrus.Fields{
					"expired": res.ExpiredSessions,
					"stale":   res.StaleLobby,
				}).Info("sweep")
			}
		}
	}
}
