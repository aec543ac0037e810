package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
)

type lobbyKey struct {
	session uuid.UUID
	user    uuid.UUID
}

type quizUserKey struct {
	quiz uuid.UUID
	user uuid.UUID
}

type lobbyEntry struct {
	seq uint64
	p   *models.LobbyParticipant
}

type participantEntry struct {
	seq uint64
	p   *models.GameParticipant
}

// Memory is an in-process Store. Records are copied on the way in and out.
type Memory struct {
	mu           sync.Mutex
	seq          uint64
	sessions     map[uuid.UUID]*models.Session
	codes        map[string]uuid.UUID
	quizzes      map[uuid.UUID]*models.Quiz
	lobby        map[lobbyKey]lobbyEntry
	participants map[quizUserKey]participantEntry
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:     make(map[uuid.UUID]*models.Session),
		codes:        make(map[string]uuid.UUID),
		quizzes:      make(map[uuid.UUID]*models.Quiz),
		lobby:        make(map[lobbyKey]lobbyEntry),
		participants: make(map[quizUserKey]participantEntry),
	}
}

func (m *Memory) next() uint64 {
	m.seq++
	return m.seq
}

func (m *Memory) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return apperr.Newf(apperr.CodeInvalidArgument, "session %s already exists", s.ID)
	}
	if _, ok := m.codes[s.Code]; ok {
		return apperr.Newf(apperr.CodeInvalidArgument, "session code %s already in use", s.Code)
	}
	m.sessions[s.ID] = s.Clone()
	m.codes[s.Code] = s.ID
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "session %s not found", id)
	}
	return s.Clone(), nil
}

func (m *Memory) GetSessionByCode(_ context.Context, code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "session %s not found", code)
	}
	return m.sessions[id].Clone(), nil
}

func (m *Memory) UpdateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return apperr.Newf(apperr.CodeNotFound, "session %s not found", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.codes[code]
	return ok, nil
}

func (m *Memory) ListExpiredSessions(_ context.Context, now time.Time) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for _, s := range m.sessions {
		if !s.Status.Terminal() && now.After(s.ExpiresAt) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func cloneQuiz(q *models.Quiz) *models.Quiz {
	c := *q
	c.Questions = make([]*models.Question, len(q.Questions))
	for i, qq := range q.Questions {
		cq := *qq
		cq.Options = append([]models.Option(nil), qq.Options...)
		c.Questions[i] = &cq
	}
	return &c
}

func (m *Memory) GetQuiz(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "quiz %s not found", id)
	}
	return cloneQuiz(q), nil
}

func (m *Memory) SaveQuiz(_ context.Context, q *models.Quiz) error {
	c := cloneQuiz(q)
	c.SortQuestions()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = c
	return nil
}

func (m *Memory) GetLobbyParticipant(_ context.Context, sessionID, userID uuid.UUID) (*models.LobbyParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lobby[lobbyKey{sessionID, userID}]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "lobby participant %s not found", userID)
	}
	return e.p.Clone(), nil
}

func (m *Memory) sortedLobby(keep func(*models.LobbyParticipant) bool) []*models.LobbyParticipant {
	var entries []lobbyEntry
	for _, e := range m.lobby {
		if keep(e.p) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*models.LobbyParticipant, len(entries))
	for i, e := range entries {
		out[i] = e.p.Clone()
	}
	return out
}

func (m *Memory) ListLobbyParticipants(_ context.Context, sessionID uuid.UUID) ([]*models.LobbyParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLobby(func(p *models.LobbyParticipant) bool { return p.SessionID == sessionID }), nil
}

func (m *Memory) ListStaleLobbyParticipants(_ context.Context, cutoff time.Time) ([]*models.LobbyParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLobby(func(p *models.LobbyParticipant) bool {
		return p.ConnectionStatus == models.Disconnected && p.LastSeen.Before(cutoff)
	}), nil
}

func (m *Memory) InsertLobbyParticipant(_ context.Context, p *models.LobbyParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := lobbyKey{p.SessionID, p.UserID}
	if _, ok := m.lobby[k]; ok {
		return apperr.Newf(apperr.CodeInvalidArgument, "user %s already in lobby", p.UserID)
	}
	m.lobby[k] = lobbyEntry{seq: m.next(), p: p.Clone()}
	return nil
}

func (m *Memory) UpdateLobbyParticipant(_ context.Context, p *models.LobbyParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := lobbyKey{p.SessionID, p.UserID}
	e, ok := m.lobby[k]
	if !ok {
		return apperr.Newf(apperr.CodeNotFound, "lobby participant %s not found", p.UserID)
	}
	e.p = p.Clone()
	m.lobby[k] = e
	return nil
}

func (m *Memory) DeleteLobbyParticipant(_ context.Context, sessionID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := lobbyKey{sessionID, userID}
	if _, ok := m.lobby[k]; !ok {
		return apperr.Newf(apperr.CodeNotFound, "lobby participant %s not found", userID)
	}
	delete(m.lobby, k)
	return nil
}

func (m *Memory) DeleteLobbyParticipants(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.lobby {
		if k.session == sessionID {
			delete(m.lobby, k)
		}
	}
	return nil
}

func (m *Memory) GetGameParticipant(_ context.Context, sessionID, userID uuid.UUID) (*models.GameParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.participants {
		if k.user == userID && e.p.SessionID == sessionID {
			return e.p.Clone(), nil
		}
	}
	return nil, apperr.Newf(apperr.CodeNotFound, "participant %s not found", userID)
}

func (m *Memory) ListGameParticipants(_ context.Context, sessionID uuid.UUID) ([]*models.GameParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []participantEntry
	for _, e := range m.participants {
		if e.p.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*models.GameParticipant, len(entries))
	for i, e := range entries {
		out[i] = e.p.Clone()
	}
	return out, nil
}

func (m *Memory) InsertGameParticipants(_ context.Context, ps []*models.GameParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make(map[quizUserKey]struct{}, len(ps))
	for _, p := range ps {
		k := quizUserKey{p.QuizID, p.UserID}
		_, exists := m.participants[k]
		_, dup := batch[k]
		if exists || dup {
			return apperr.Newf(apperr.CodeInvalidArgument, "participant %s already exists for quiz %s", p.UserID, p.QuizID)
		}
		batch[k] = struct{}{}
	}
	for _, p := range ps {
		m.participants[quizUserKey{p.QuizID, p.UserID}] = participantEntry{seq: m.next(), p: p.Clone()}
	}
	return nil
}

func (m *Memory) DeleteGameParticipants(_ context.Context, quizID uuid.UUID, userIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range userIDs {
		delete(m.participants, quizUserKey{quizID, u})
	}
	return nil
}

func (m *Memory) UpdateGameParticipant(_ context.Context, p *models.GameParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := quizUserKey{p.QuizID, p.UserID}
	e, ok := m.participants[k]
	if !ok || e.p.SessionID != p.SessionID {
		return apperr.Newf(apperr.CodeNotFound, "participant %s not found", p.UserID)
	}
	e.p = p.Clone()
	m.participants[k] = e
	return nil
}
