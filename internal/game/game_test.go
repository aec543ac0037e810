// internal/game/game_test.go
package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/realtime"
	"github.com/jason-s-yu/quizlive/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []realtime.Event
	playerEvents map[uuid.UUID][]realtime.Event
	closedRooms  []string
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]realtime.Event),
	}
}

func (mb *mockBroadcaster) Broadcast(_ string, ev realtime.Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) SendTo(_ string, userID uuid.UUID, ev realtime.Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[userID] = append(mb.playerEvents[userID], ev)
}

func (mb *mockBroadcaster) CloseRoom(room string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.closedRooms = append(mb.closedRooms, room)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]realtime.Event)
}

// lastOfType returns the most recent broadcast of typ, or nil.
func (mb *mockBroadcaster) lastOfType(typ string) *realtime.Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.allEvents) - 1; i >= 0; i-- {
		if mb.allEvents[i].Type == typ {
			ev := mb.allEvents[i]
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) lastPlayerEvent(userID uuid.UUID, typ string) *realtime.Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[userID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			ev := events[i]
			return &ev
		}
	}
	return nil
}

func (mb *mockBroadcaster) closed() []string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return append([]string(nil), mb.closedRooms...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore fails UpdateSession on demand.
type flakyStore struct {
	*store.Memory
	failUpdates atomic.Bool
}

func (f *flakyStore) UpdateSession(ctx context.Context, s *models.Session) error {
	if f.failUpdates.Load() {
		return errors.New("connection reset")
	}
	return f.Memory.UpdateSession(ctx, s)
}

type fixture struct {
	ctx    context.Context
	engine *Engine
	store  *flakyStore
	mb     *mockBroadcaster
	clock  *fakeClock
	quiz   *models.Quiz
	host   models.Identity
}

func setupEngine(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	f := &fixture{
		ctx:   context.Background(),
		store: &flakyStore{Memory: store.NewMemory()},
		mb:    newMockBroadcaster(),
		clock: &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		host:  identity("host", models.RoleOrganizer),
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.engine = NewEngine(f.store, f.mb, logger, opts...)
	// keep questions open unless a test shortens them
	f.engine.QuestionDuration = func(*models.Question, *models.Session) time.Duration { return time.Hour }
	t.Cleanup(f.engine.Shutdown)

	f.quiz = &models.Quiz{
		ID:    uuid.New(),
		Title: "Capitals",
		Questions: []*models.Question{
			{
				ID: uuid.New(), Position: 0, Type: models.Classic,
				Text:    "Capital of France?",
				Options: []models.Option{{Text: "Paris", IsCorrect: true}},
				Points:  100, TimeGiven: 30,
			},
			{
				ID: uuid.New(), Position: 1, Type: models.MultipleChoice,
				Text: "Capital of Italy?",
				Options: []models.Option{
					{Text: "Milan"}, {Text: "Rome", IsCorrect: true}, {Text: "Turin"},
				},
				Points: 200, TimeGiven: 20,
			},
		},
	}
	for _, q := range f.quiz.Questions {
		q.QuizID = f.quiz.ID
	}
	require.NoError(t, f.store.SaveQuiz(f.ctx, f.quiz))
	return f
}

func identity(name string, role models.Role) models.Identity {
	return models.Identity{UserID: uuid.New(), Role: role, Name: name}
}

func (f *fixture) createSession(t *testing.T, settings *models.Settings) *models.Session {
	t.Helper()
	s, err := f.engine.CreateSession(f.ctx, f.host, f.quiz.ID, settings)
	require.NoError(t, err)
	return s
}

// startWithPlayers creates a session, seats the host plus n ready players and starts it.
func (f *fixture) startWithPlayers(t *testing.T, n int, settings *models.Settings) (*models.Session, []models.Identity) {
	t.Helper()
	s := f.createSession(t, settings)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)

	players := make([]models.Identity, n)
	for i := range players {
		players[i] = identity("player", models.RolePlayer)
		_, err := f.engine.JoinLobby(f.ctx, s.ID, players[i])
		require.NoError(t, err)
		_, err = f.engine.SetReady(f.ctx, s.ID, players[i].UserID, true)
		require.NoError(t, err)
	}

	started, err := f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	return started, players
}

func TestCreateSessionRequiresOrganizer(t *testing.T) {
	f := setupEngine(t)

	_, err := f.engine.CreateSession(f.ctx, identity("p", models.RolePlayer), f.quiz.ID, nil)
	assert.ErrorIs(t, err, apperr.Forbidden)

	s, err := f.engine.CreateSession(f.ctx, f.host, f.quiz.ID, &models.Settings{MaxParticipants: 500})
	require.NoError(t, err)
	assert.Equal(t, models.SessionLobby, s.Status)
	assert.Len(t, s.Code, 6)
	assert.Equal(t, models.MaxParticipantsCap, s.Settings.MaxParticipants)
	assert.Equal(t, models.DefaultSecondsPerQuestion, s.Settings.SecondsPerQuestion)
}

func TestJoinLobbyRespectsMaxParticipants(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, &models.Settings{MaxParticipants: 1})

	first := identity("a", models.RolePlayer)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, first)
	require.NoError(t, err)

	_, err = f.engine.JoinLobby(f.ctx, s.ID, identity("b", models.RolePlayer))
	assert.ErrorIs(t, err, apperr.NotJoinable)

	// rejoining does not count twice
	_, err = f.engine.JoinLobby(f.ctx, s.ID, first)
	require.NoError(t, err)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
}

func TestJoinLobbySendsRoster(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)

	p := identity("a", models.RolePlayer)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, p)
	require.NoError(t, err)

	ev := f.mb.lastPlayerEvent(p.UserID, EventLobbyRoster)
	require.NotNil(t, ev)
	roster := ev.Payload.(RosterPayload)
	assert.Equal(t, s.HostID, roster.HostID)
	require.Len(t, roster.Participants, 1)
	assert.Equal(t, p.UserID, roster.Participants[0].UserID)
	assert.NotNil(t, f.mb.lastOfType(EventUserJoined))
}

func TestHostLeaveTransfersHost(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)

	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	second := identity("second", models.RolePlayer)
	third := identity("third", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, second)
	require.NoError(t, err)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, third)
	require.NoError(t, err)

	require.NoError(t, f.engine.LeaveLobby(f.ctx, s.ID, f.host.UserID))

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, second.UserID, got.HostID)
	assert.Equal(t, models.SessionLobby, got.Status)
	assert.Equal(t, 2, got.ParticipantCount)

	rec, err := f.store.GetLobbyParticipant(f.ctx, s.ID, second.UserID)
	require.NoError(t, err)
	assert.True(t, rec.IsHost)
	assert.True(t, rec.IsReady)

	ev := f.mb.lastOfType(EventHostChanged)
	require.NotNil(t, ev)
	assert.Equal(t, second.UserID, ev.Payload.(UserPayload).UserID)

	// the new host can start
	_, err = f.engine.StartSession(f.ctx, s.ID, second.UserID)
	require.NoError(t, err)
}

func TestHostLeaveAloneCancels(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)

	require.NoError(t, f.engine.LeaveLobby(f.ctx, s.ID, f.host.UserID))

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, got.Status)
	assert.NotNil(t, got.FinishedAt)

	ev := f.mb.lastOfType(EventSessionEnded)
	require.NotNil(t, ev)
	assert.Equal(t, EndReasonCancelled, ev.Payload.(EndedPayload).Reason)
	assert.Contains(t, f.mb.closed(), realtime.SessionRoom(s.ID))
	assert.Equal(t, 0, f.engine.actors.len())

	_, err = f.engine.JoinLobby(f.ctx, s.ID, identity("late", models.RolePlayer))
	assert.ErrorIs(t, err, apperr.NotJoinable)
}

func TestLeaveKeepsSeatWhenSaveFails(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, &models.Settings{MaxParticipants: 2})
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	player := identity("player", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, player)
	require.NoError(t, err)

	f.store.failUpdates.Store(true)
	err = f.engine.LeaveLobby(f.ctx, s.ID, player.UserID)
	assert.ErrorIs(t, err, apperr.Internal)
	err = f.engine.LeaveLobby(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.Internal)
	f.store.failUpdates.Store(false)

	_, err = f.store.GetLobbyParticipant(f.ctx, s.ID, player.UserID)
	require.NoError(t, err, "record survives a failed leave")
	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount)
	assert.Equal(t, f.host.UserID, got.HostID)
	assert.Nil(t, f.mb.lastOfType(EventUserLeft))

	require.NoError(t, f.engine.LeaveLobby(f.ctx, s.ID, player.UserID))
	_, err = f.store.GetLobbyParticipant(f.ctx, s.ID, player.UserID)
	assert.ErrorIs(t, err, apperr.NotFound)
	got, err = f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)

	// the freed seat can be taken again
	_, err = f.engine.JoinLobby(f.ctx, s.ID, identity("next", models.RolePlayer))
	require.NoError(t, err)
}

func TestStartSessionValidation(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	_, err = f.engine.SetReady(f.ctx, s.ID, f.host.UserID, false)
	require.NoError(t, err)
	p := identity("p", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, p)
	require.NoError(t, err)

	_, err = f.engine.StartSession(f.ctx, s.ID, p.UserID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.NotEnoughReady)

	_, err = f.engine.SetReady(f.ctx, s.ID, p.UserID, true)
	require.NoError(t, err)
	started, err := f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPlaying, started.Status)
	assert.Equal(t, 0, started.GameState.CurrentQuestionIndex)
	assert.Equal(t, 2, started.GameState.TotalQuestions)
	assert.Equal(t, 2, started.ParticipantCount)
	require.NotNil(t, started.GameState.CurrentQuestionStartedAt)

	lobby, err := f.store.ListLobbyParticipants(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, lobby)

	ev := f.mb.lastOfType(EventNewQuestion)
	require.NotNil(t, ev)
	view := ev.Payload.(QuestionView)
	require.NotNil(t, view.Question)
	assert.Equal(t, f.quiz.Questions[0].ID, view.Question.ID)

	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.InvalidTransition)
}

func TestStartSessionSkipsDisconnected(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	gone := identity("gone", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, gone)
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkDisconnected(f.ctx, s.ID, gone.UserID))

	pending := identity("pending", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, pending)
	require.NoError(t, err)
	rec, err := f.store.GetLobbyParticipant(f.ctx, s.ID, pending.UserID)
	require.NoError(t, err)
	rec.ConnectionStatus = models.Connecting
	rec.IsReady = true
	require.NoError(t, f.store.UpdateLobbyParticipant(f.ctx, rec))

	active, err := f.engine.ListActive(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	started, err := f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, started.ParticipantCount)

	_, err = f.store.GetGameParticipant(f.ctx, s.ID, gone.UserID)
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = f.store.GetGameParticipant(f.ctx, s.ID, pending.UserID)
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = f.store.GetGameParticipant(f.ctx, s.ID, f.host.UserID)
	assert.NoError(t, err)
}

func TestStartSessionRollsBackMigration(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)

	f.store.failUpdates.Store(true)
	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.Internal)
	f.store.failUpdates.Store(false)

	ps, err := f.store.ListGameParticipants(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, ps)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionLobby, got.Status)

	lobby, err := f.store.ListLobbyParticipants(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, lobby, 1)

	// a retry succeeds
	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
}

func TestSubmitAnswerParis(t *testing.T) {
	f := setupEngine(t)
	s, players := f.startWithPlayers(t, 1, nil)

	res, err := f.engine.SubmitAnswer(f.ctx, s.ID, f.host.UserID, f.quiz.Questions[0].ID, models.MustAnswer("Paris"))
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, int64(0), res.TimeSpentMillis)
	assert.Equal(t, "Paris", res.CorrectAnswer)

	f.clock.Advance(30 * time.Second)
	res, err = f.engine.SubmitAnswer(f.ctx, s.ID, players[0].UserID, uuid.Nil, models.MustAnswer("PARIS "))
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 50, res.Points)
	assert.Equal(t, int64(30000), res.TimeSpentMillis)

	ev := f.mb.lastPlayerEvent(players[0].UserID, EventAnswerResult)
	require.NotNil(t, ev)
	assert.Equal(t, 50, ev.Payload.(*AnswerResult).Points)

	lb := f.mb.lastOfType(EventLeaderboardUpdate)
	require.NotNil(t, lb)
	board := lb.Payload.(LeaderboardPayload).Leaderboard
	require.Len(t, board, 2)
	assert.Equal(t, f.host.UserID, board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 2, board[1].Rank)
}

func TestSubmitAnswerOncePerQuestion(t *testing.T) {
	f := setupEngine(t)
	s, players := f.startWithPlayers(t, 1, nil)
	user := players[0].UserID

	res, err := f.engine.SubmitAnswer(f.ctx, s.ID, user, uuid.Nil, models.MustAnswer("Lyon"))
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0, res.Points)

	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, user, uuid.Nil, models.MustAnswer("Paris"))
	assert.ErrorIs(t, err, apperr.AlreadyAnswered)

	p, err := f.store.GetGameParticipant(f.ctx, s.ID, user)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalScore)
	assert.Len(t, p.Answers, 1)
	assert.Equal(t, models.GameWaiting, p.GameStatus)
}

func TestSubmitAnswerErrors(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)

	_, err := f.engine.SubmitAnswer(f.ctx, s.ID, f.host.UserID, uuid.Nil, models.MustAnswer("Paris"))
	assert.ErrorIs(t, err, apperr.SessionNotPlaying)

	_, err = f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)

	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, uuid.New(), uuid.Nil, models.MustAnswer("Paris"))
	assert.ErrorIs(t, err, apperr.NotParticipant)

	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, f.host.UserID, f.quiz.Questions[1].ID, models.MustAnswer(1))
	assert.ErrorIs(t, err, apperr.QuestionNotFound)

	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, f.host.UserID, uuid.Nil, models.MustAnswer("Paris"))
	assert.NoError(t, err)
}

func TestConcurrentSubmissionsCreditOnce(t *testing.T) {
	f := setupEngine(t)
	s, players := f.startWithPlayers(t, 1, nil)
	user := players[0].UserID

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitAnswer(f.ctx, s.ID, user, uuid.Nil, models.MustAnswer("paris"))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.AlreadyAnswered):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), rejected.Load())

	p, err := f.store.GetGameParticipant(f.ctx, s.ID, user)
	require.NoError(t, err)
	assert.Equal(t, 100, p.TotalScore)
	assert.Len(t, p.Answers, 1)
}

func TestAdvanceThroughLastQuestionFinishes(t *testing.T) {
	f := setupEngine(t)
	s, players := f.startWithPlayers(t, 1, nil)

	_, err := f.engine.AdvanceQuestion(f.ctx, s.ID, players[0].UserID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, players[0].UserID, uuid.Nil, models.MustAnswer("Paris"))
	require.NoError(t, err)

	next, err := f.engine.AdvanceQuestion(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.GameState.CurrentQuestionIndex)

	p, err := f.store.GetGameParticipant(f.ctx, s.ID, players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.GamePlaying, p.GameStatus)
	assert.Equal(t, 1, p.CurrentQuestionIndex)

	view, err := f.engine.CurrentQuestion(f.ctx, s.ID, players[0].UserID)
	require.NoError(t, err)
	require.NotNil(t, view.Question)
	assert.Equal(t, f.quiz.Questions[1].ID, view.Question.ID)
	assert.False(t, view.HasAnswered)
	assert.Positive(t, view.RemainingMillis)

	final, err := f.engine.AdvanceQuestion(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, final.Status)
	assert.Equal(t, 2, final.GameState.CurrentQuestionIndex)
	assert.Nil(t, final.GameState.CurrentQuestionStartedAt)
	assert.NotNil(t, final.FinishedAt)

	ev := f.mb.lastOfType(EventSessionEnded)
	require.NotNil(t, ev)
	ended := ev.Payload.(EndedPayload)
	assert.Equal(t, EndReasonCompleted, ended.Reason)
	require.Len(t, ended.Leaderboard, 2)
	assert.Equal(t, players[0].UserID, ended.Leaderboard[0].UserID)

	p, err = f.store.GetGameParticipant(f.ctx, s.ID, players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.GameFinished, p.GameStatus)
	assert.Contains(t, f.mb.closed(), realtime.SessionRoom(s.ID))

	_, err = f.engine.AdvanceQuestion(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.InvalidTransition)
	_, err = f.engine.SubmitAnswer(f.ctx, s.ID, f.host.UserID, uuid.Nil, models.MustAnswer(1))
	assert.ErrorIs(t, err, apperr.SessionNotPlaying)
}

func TestEndSessionByHost(t *testing.T) {
	f := setupEngine(t)
	s, players := f.startWithPlayers(t, 2, nil)

	_, err := f.engine.EndSession(f.ctx, s.ID, players[1].UserID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	ended, err := f.engine.EndSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, ended.Status)

	ev := f.mb.lastOfType(EventSessionEnded)
	require.NotNil(t, ev)
	assert.Equal(t, EndReasonHost, ev.Payload.(EndedPayload).Reason)
	assert.Equal(t, 0, f.engine.actors.len())

	_, err = f.engine.EndSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.InvalidTransition)
}

func TestEndSessionInLobbyCancels(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)

	ended, err := f.engine.EndSession(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, ended.Status)
	assert.Nil(t, ended.StartedAt)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, got.Status)
	require.NotNil(t, got.FinishedAt)

	lobby, err := f.store.ListLobbyParticipants(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, lobby)

	ev := f.mb.lastOfType(EventSessionEnded)
	require.NotNil(t, ev)
	assert.Equal(t, EndReasonCancelled, ev.Payload.(EndedPayload).Reason)
	assert.Contains(t, f.mb.closed(), realtime.SessionRoom(s.ID))
	assert.Equal(t, 0, f.engine.actors.len())

	_, err = f.engine.EndSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.InvalidTransition)
	_, err = f.engine.StartSession(f.ctx, s.ID, f.host.UserID)
	assert.ErrorIs(t, err, apperr.InvalidTransition)
}

func TestTimerAdvancesAfterGrace(t *testing.T) {
	f := setupEngine(t, WithGracePeriod(30*time.Millisecond))
	f.engine.QuestionDuration = func(*models.Question, *models.Session) time.Duration { return 30 * time.Millisecond }

	s, players := f.startWithPlayers(t, 1, nil)

	require.Eventually(t, func() bool {
		got, err := f.engine.GetSession(f.ctx, s.ID)
		return err == nil && got.GameState.CurrentQuestionIndex >= 1
	}, 2*time.Second, 5*time.Millisecond)

	ev := f.mb.lastOfType(EventTimeUp)
	require.NotNil(t, ev)
	assert.Equal(t, f.quiz.Questions[0].ID, ev.Payload.(TimeUpPayload).QuestionID)
	assert.Equal(t, "Paris", ev.Payload.(TimeUpPayload).CorrectAnswer)

	require.Eventually(t, func() bool {
		got, err := f.engine.GetSession(f.ctx, s.ID)
		return err == nil && got.Status == models.SessionFinished
	}, 2*time.Second, 5*time.Millisecond)

	p, err := f.store.GetGameParticipant(f.ctx, s.ID, players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalScore)
	assert.Empty(t, p.Answers)

	ended := f.mb.lastOfType(EventSessionEnded)
	require.NotNil(t, ended)
	assert.Equal(t, EndReasonCompleted, ended.Payload.(EndedPayload).Reason)
}

func TestFailedAutoAdvanceLeavesManualAdvance(t *testing.T) {
	f := setupEngine(t, WithGracePeriod(50*time.Millisecond))
	f.engine.QuestionDuration = func(*models.Question, *models.Session) time.Duration { return 50 * time.Millisecond }

	s, _ := f.startWithPlayers(t, 1, nil)
	f.store.failUpdates.Store(true)

	require.Eventually(t, func() bool {
		return f.mb.lastOfType(EventTimeUp) != nil
	}, 2*time.Second, 5*time.Millisecond)

	// wait out the grace window; the advance fails and the timer is discarded
	require.Eventually(t, func() bool {
		a := f.engine.actors.lookup(s.ID)
		if a == nil {
			return false
		}
		defer a.mu.Unlock()
		return a.timer == nil
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPlaying, got.Status)
	assert.Equal(t, 0, got.GameState.CurrentQuestionIndex)

	f.store.failUpdates.Store(false)
	next, err := f.engine.AdvanceQuestion(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPlaying, next.Status)
	assert.Equal(t, 1, next.GameState.CurrentQuestionIndex)
}

func TestManualAdvanceCancelsTimer(t *testing.T) {
	f := setupEngine(t, WithGracePeriod(time.Hour))
	f.engine.QuestionDuration = func(*models.Question, *models.Session) time.Duration { return 40 * time.Millisecond }

	s, _ := f.startWithPlayers(t, 1, nil)
	_, err := f.engine.AdvanceQuestion(f.ctx, s.ID, f.host.UserID)
	require.NoError(t, err)
	f.mb.clear()

	// the first question's timer must not close the second question early
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, f.mb.lastOfType(EventTimeUp))

	require.Eventually(t, func() bool {
		ev := f.mb.lastOfType(EventTimeUp)
		return ev != nil && ev.Payload.(TimeUpPayload).QuestionIndex == 1
	}, 2*time.Second, 5*time.Millisecond)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.GameState.CurrentQuestionIndex)
}

func TestLateJoin(t *testing.T) {
	f := setupEngine(t)
	closed, _ := f.startWithPlayers(t, 1, nil)

	_, err := f.engine.JoinGame(f.ctx, closed.ID, identity("late", models.RolePlayer))
	assert.ErrorIs(t, err, apperr.NotJoinable)

	open, _ := f.startWithPlayers(t, 1, &models.Settings{AllowLateJoin: true})
	late := identity("late", models.RolePlayer)
	p, err := f.engine.JoinGame(f.ctx, open.ID, late)
	require.NoError(t, err)
	assert.Equal(t, models.GamePlaying, p.GameStatus)

	got, err := f.engine.GetSession(f.ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ParticipantCount)

	ev := f.mb.lastPlayerEvent(late.UserID, EventCurrentQuestion)
	require.NotNil(t, ev)
	assert.Equal(t, 0, ev.Payload.(QuestionView).QuestionIndex)

	res, err := f.engine.SubmitAnswer(f.ctx, open.ID, late.UserID, uuid.Nil, models.MustAnswer("Paris"))
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)

	// rejoining keeps the record
	again, err := f.engine.JoinGame(f.ctx, open.ID, late)
	require.NoError(t, err)
	assert.Equal(t, 100, again.TotalScore)
}

func TestRank(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := base.Add(d)
		return &ts
	}
	ps := []*models.GameParticipant{
		{UserID: uuid.New(), DisplayName: "slow", TotalScore: 100, LastQuestionAnsweredAt: at(2 * time.Second)},
		{UserID: uuid.New(), DisplayName: "low", TotalScore: 50, LastQuestionAnsweredAt: at(time.Second)},
		{UserID: uuid.New(), DisplayName: "fast-b", TotalScore: 100, LastQuestionAnsweredAt: at(time.Second)},
		{UserID: uuid.New(), DisplayName: "fast-a", TotalScore: 100, LastQuestionAnsweredAt: at(time.Second)},
		{UserID: uuid.New(), DisplayName: "idle", TotalScore: 50},
	}

	board := Rank(ps)
	names := make([]string, len(board))
	ranks := make([]int, len(board))
	for i, e := range board {
		names[i] = e.DisplayName
		ranks[i] = e.Rank
	}
	assert.Equal(t, []string{"fast-a", "fast-b", "slow", "low", "idle"}, names)
	assert.Equal(t, []int{1, 1, 2, 3, 4}, ranks)
	assert.Empty(t, Rank(nil))
}

func TestSweepExpiresSessions(t *testing.T) {
	f := setupEngine(t)
	lobby := f.createSession(t, nil)
	playing, _ := f.startWithPlayers(t, 1, nil)

	res, err := f.engine.Sweep(f.ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, res.ExpiredSessions)

	res, err = f.engine.Sweep(f.ctx, f.clock.Now().Add(models.SessionTTL+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExpiredSessions)

	got, err := f.engine.GetSession(f.ctx, lobby.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, got.Status)

	got, err = f.engine.GetSession(f.ctx, playing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, got.Status)
	assert.Equal(t, 0, f.engine.actors.len())
}

func TestSweepDropsStaleLobbyParticipants(t *testing.T) {
	f := setupEngine(t)
	s := f.createSession(t, nil)
	_, err := f.engine.JoinLobby(f.ctx, s.ID, f.host)
	require.NoError(t, err)
	gone := identity("gone", models.RolePlayer)
	_, err = f.engine.JoinLobby(f.ctx, s.ID, gone)
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkDisconnected(f.ctx, s.ID, gone.UserID))

	res, err := f.engine.Sweep(f.ctx, f.clock.Now().Add(models.LobbyStaleTTL+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, res.StaleLobby)

	_, err = f.store.GetLobbyParticipant(f.ctx, s.ID, gone.UserID)
	assert.ErrorIs(t, err, apperr.NotFound)

	got, err := f.engine.GetSession(f.ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParticipantCount)
	assert.Equal(t, f.host.UserID, got.HostID)
}
