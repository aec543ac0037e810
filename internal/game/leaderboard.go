package game

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// LeaderboardEntry is one ranked participant.
type LeaderboardEntry struct {
	Rank                   int        `json:"rank"`
	UserID                 uuid.UUID  `json:"userId"`
	DisplayName            string     `json:"displayName"`
	Avatar                 string     `json:"avatar,omitempty"`
	TotalScore             int        `json:"totalScore"`
	CorrectAnswers         int        `json:"correctAnswers"`
	AnsweredCount          int        `json:"answeredCount"`
	LastQuestionAnsweredAt *time.Time `json:"lastQuestionAnsweredAt,omitempty"`
}

// Leaderboard ranks every participant of the session.
func (e *Engine) Leaderboard(ctx context.Context, sessionID uuid.UUID) (board []LeaderboardEntry, err error) {
	ctx, span := e.startSpan(ctx, "Leaderboard", sessionID)
	defer func() { endSpan(span, err) }()

	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, internal(err, "load session")
	}
	return e.leaderboard(ctx, sessionID)
}

func (e *Engine) leaderboard(ctx context.Context, sessionID uuid.UUID) ([]LeaderboardEntry, error) {
	ps, err := e.store.ListGameParticipants(ctx, sessionID)
	if err != nil {
		return nil, internal(err, "list participants")
	}
	return Rank(ps), nil
}

// Rank orders participants by score, then by who answered their last question
// first. Entries tied on both share a rank; ranks are dense.
func Rank(ps []*models.GameParticipant) []LeaderboardEntry {
	board := make([]LeaderboardEntry, 0, len(ps))
	for _, p := range ps {
		entry := LeaderboardEntry{
			UserID:                 p.UserID,
			DisplayName:            p.DisplayName,
			Avatar:                 p.Avatar,
			TotalScore:             p.TotalScore,
			AnsweredCount:          len(p.Answers),
			LastQuestionAnsweredAt: p.LastQuestionAnsweredAt,
		}
		for _, a := range p.Answers {
			if a.IsCorrect {
				entry.CorrectAnswers++
			}
		}
		board = append(board, entry)
	}

	sort.SliceStable(board, func(i, j int) bool {
		a, b := board[i], board[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if c := compareAnsweredAt(a.LastQuestionAnsweredAt, b.LastQuestionAnsweredAt); c != 0 {
			return c < 0
		}
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.UserID.String() < b.UserID.String()
	})

	rank := 0
	for i := range board {
		if i == 0 || !tied(board[i-1], board[i]) {
			rank++
		}
		board[i].Rank = rank
	}
	return board
}

// compareAnsweredAt sorts earlier timestamps first and nil last.
func compareAnsweredAt(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func tied(a, b LeaderboardEntry) bool {
	return a.TotalScore == b.TotalScore && compareAnsweredAt(a.LastQuestionAnsweredAt, b.LastQuestionAnsweredAt) == 0
}
