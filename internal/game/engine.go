// Package game is the session orchestration engine: lobby management,
// lobby-to-game migration, answer submission, the question timer and the
// leaderboard. Every mutation of a session runs under that session's actor
// lock, so the websocket and HTTP transports observe one total order.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/cache"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/realtime"
	"github.com/jason-s-yu/quizlive/internal/store"
	"github.com/jason-s-yu/quizlive/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultGracePeriod is the pause between time_up and the automatic advance.
const DefaultGracePeriod = 3 * time.Second

// Engine orchestrates live sessions. Create one per process with NewEngine.
type Engine struct {
	store   store.Store
	hub     realtime.Broadcaster
	actions cache.ActionPublisher
	logger  *logrus.Logger
	tracer  trace.Tracer

	// Now is the engine clock. Elapsed answer time is measured with it.
	Now func() time.Time
	// GracePeriod separates time_up from the automatic advance.
	GracePeriod time.Duration
	// QuestionDuration decides how long a question stays open.
	QuestionDuration func(q *models.Question, s *models.Session) time.Duration

	actors *actorRegistry
}

// Option customizes an Engine.
type Option func(*Engine)

// WithActionPublisher sends action records to p.
func WithActionPublisher(p cache.ActionPublisher) Option {
	return func(e *Engine) { e.actions = p }
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) { e.GracePeriod = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.Now = now }
}

// NewEngine wires an engine to its store and push channel.
func NewEngine(st store.Store, hub realtime.Broadcaster, logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &Engine{
		store:            st,
		hub:              hub,
		actions:          cache.Discard{},
		logger:           logger,
		tracer:           telemetry.Tracer(),
		Now:              time.Now,
		GracePeriod:      DefaultGracePeriod,
		QuestionDuration: defaultQuestionDuration,
		actors:           newActorRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultQuestionDuration(q *models.Question, s *models.Session) time.Duration {
	secs := q.TimeGiven
	if secs <= 0 {
		secs = s.Settings.SecondsPerQuestion
	}
	if secs <= 0 {
		secs = models.DefaultSecondsPerQuestion
	}
	return time.Duration(secs) * time.Second
}

// Shutdown cancels every pending question timer.
func (e *Engine) Shutdown() {
	e.actors.stopAll()
}

func (e *Engine) log(sessionID uuid.UUID) *logrus.Entry {
	return e.logger.WithField("session", sessionID)
}

func (e *Engine) startSpan(ctx context.Context, name string, sessionID uuid.UUID) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "game."+name, trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// internal passes domain errors through and wraps everything else as INTERNAL.
func internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.CodeInternal, err, msg)
}

// withSession runs fn under the session's actor lock with a freshly loaded session.
func (e *Engine) withSession(ctx context.Context, sessionID uuid.UUID, fn func(a *sessionActor, s *models.Session) error) error {
	a := e.actors.acquire(sessionID)
	defer a.mu.Unlock()

	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			e.actors.remove(a)
		}
		return internal(err, "load session")
	}
	err = fn(a, s)
	if s.Status.Terminal() {
		a.stopTimer()
		e.actors.remove(a)
	}
	return err
}

func (e *Engine) saveSession(ctx context.Context, s *models.Session) error {
	return internal(e.store.UpdateSession(ctx, s), "update session")
}

func (e *Engine) broadcast(sessionID uuid.UUID, typ string, payload any) {
	e.hub.Broadcast(realtime.SessionRoom(sessionID), realtime.Event{Type: typ, Payload: payload})
}

func (e *Engine) sendTo(sessionID, userID uuid.UUID, typ string, payload any) {
	e.hub.SendTo(realtime.SessionRoom(sessionID), userID, realtime.Event{Type: typ, Payload: payload})
}

// record publishes an action; the caller holds the actor lock.
func (e *Engine) record(a *sessionActor, actor uuid.UUID, actionType string, payload any) {
	a.actionIndex++
	e.actions.Publish(models.NewActionRecord(a.sessionID, actor, a.actionIndex, actionType, payload, e.Now()))
}

// dispose tears down the actor and room of a session that reached a terminal state.
func (e *Engine) dispose(a *sessionActor) {
	a.stopTimer()
	e.actors.remove(a)
	e.hub.CloseRoom(realtime.SessionRoom(a.sessionID))
}

// GetSession returns a session by ID.
func (e *Engine) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := e.store.GetSession(ctx, id)
	return s, internal(err, "load session")
}

// GetSessionByCode resolves a join code.
func (e *Engine) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	s, err := e.store.GetSessionByCode(ctx, code)
	return s, internal(err, "load session")
}
