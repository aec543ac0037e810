// internal/models/participant.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the per-participant phase inside a running game.
type GameStatus string

const (
	GamePlaying  GameStatus = "playing"
	GameWaiting  GameStatus = "waiting"
	GameFinished GameStatus = "finished"
)

// Answer is one scored submission. A participant holds at most one per QuestionIndex.
type Answer struct {
	QuestionID      uuid.UUID   `json:"questionId"`
	QuestionIndex   int         `json:"questionIndex"`
	Value           AnswerValue `json:"value"`
	SubmittedAt     time.Time   `json:"submittedAt"`
	IsCorrect       bool        `json:"isCorrect"`
	Points          int         `json:"points"`
	TimeSpentMillis int64       `json:"timeSpentMillis"`
}

// GameParticipant is one user's in-game record, unique per (QuizID, UserID).
type GameParticipant struct {
	ID                     uuid.UUID        `json:"id"`
	SessionID              uuid.UUID        `json:"sessionId"`
	QuizID                 uuid.UUID        `json:"quizId"`
	UserID                 uuid.UUID        `json:"userId"`
	DisplayName            string           `json:"displayName"`
	Avatar                 string           `json:"avatar,omitempty"`
	CurrentQuestionIndex   int              `json:"currentQuestionIndex"`
	TotalScore             int              `json:"totalScore"`
	GameStatus             GameStatus       `json:"gameStatus"`
	ConnectionStatus       ConnectionStatus `json:"connectionStatus"`
	Answers                []Answer         `json:"answers"`
	LastActivity           time.Time        `json:"lastActivity"`
	LastQuestionAnsweredAt *time.Time       `json:"lastQuestionAnsweredAt,omitempty"`
}

// AnswerFor returns the answer recorded for questionIndex, if any.
func (p *GameParticipant) AnswerFor(questionIndex int) (Answer, bool) {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return a, true
		}
	}
	return Answer{}, false
}

// Clone returns a deep copy of the participant.
func (p *GameParticipant) Clone() *GameParticipant {
	if p == nil {
		return nil
	}
	c := *p
	c.Answers = make([]Answer, len(p.Answers))
	for i, a := range p.Answers {
		a.Value = append(AnswerValue(nil), a.Value...)
		c.Answers[i] = a
	}
	c.LastQuestionAnsweredAt = cloneTime(p.LastQuestionAnsweredAt)
	return &c
}
