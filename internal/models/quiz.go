// internal/models/quiz.go
package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// QuestionType is the closed set of supported question kinds.
type QuestionType string

const (
	Classic        QuestionType = "CLASSIC"
	Order          QuestionType = "ORDER"
	Association    QuestionType = "ASSOCIATION"
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	FindIntruder   QuestionType = "FIND_INTRUDER"
)

// QuestionTypes lists every known type.
var QuestionTypes = []QuestionType{Classic, Order, Association, MultipleChoice, TrueFalse, FindIntruder}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	for _, k := range QuestionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// UnmarshalJSON rejects unknown question types at decode time.
func (t *QuestionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	qt := QuestionType(s)
	if !qt.Valid() {
		return fmt.Errorf("unknown question type %q", s)
	}
	*t = qt
	return nil
}

// Pair is the left/right couple of an ASSOCIATION option.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Option is one answer choice of a question.
type Option struct {
	Text         string `json:"text"`
	IsCorrect    bool   `json:"isCorrect"`
	CorrectOrder int    `json:"correctOrder,omitempty"`
	Pair         *Pair  `json:"pair,omitempty"`
}

// Question is one quiz question. TimeGiven is in seconds, 0 meaning the session default.
type Question struct {
	ID        uuid.UUID    `json:"id"`
	QuizID    uuid.UUID    `json:"quizId"`
	Position  int          `json:"position"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text"`
	Options   []Option     `json:"options"`
	Points    int          `json:"points"`
	TimeGiven int          `json:"timeGiven"`
	ImageURL  string       `json:"imageUrl,omitempty"`
}

// Quiz is a read-only question template.
type Quiz struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Title     string      `json:"title"`
	Questions []*Question `json:"questions"`
}

// SortQuestions orders questions by Position.
func (q *Quiz) SortQuestions() {
	sort.SliceStable(q.Questions, func(i, j int) bool {
		return q.Questions[i].Position < q.Questions[j].Position
	})
}

// QuestionAt returns the question at index i or nil when out of range.
func (q *Quiz) QuestionAt(i int) *Question {
	if q == nil || i < 0 || i >= len(q.Questions) {
		return nil
	}
	return q.Questions[i]
}

// PublicOption is an option stripped of correctness data.
type PublicOption struct {
	Text string `json:"text"`
}

// PublicRight is one right-hand side of an ASSOCIATION question. Index is the
// option index a client sends back as rightIndex.
type PublicRight struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PublicQuestion is the participant-facing view of a question.
type PublicQuestion struct {
	ID        uuid.UUID      `json:"id"`
	Index     int            `json:"index"`
	Type      QuestionType   `json:"type"`
	Text      string         `json:"text"`
	Options   []PublicOption `json:"options"`
	Rights    []PublicRight  `json:"rights,omitempty"`
	Points    int            `json:"points"`
	TimeGiven int            `json:"timeGiven"`
	ImageURL  string         `json:"imageUrl,omitempty"`
}

// Public returns the question without correctness data. ORDER options are
// sorted by text so position does not leak the expected sequence. ASSOCIATION
// options carry their left side only; right sides are listed separately in
// text order.
func (q *Question) Public(index, defaultSeconds int) PublicQuestion {
	pq := PublicQuestion{
		ID:        q.ID,
		Index:     index,
		Type:      q.Type,
		Text:      q.Text,
		Points:    q.Points,
		TimeGiven: q.TimeGiven,
		ImageURL:  q.ImageURL,
	}
	if pq.TimeGiven <= 0 {
		pq.TimeGiven = defaultSeconds
	}
	for i, o := range q.Options {
		text := o.Text
		if q.Type == Association && o.Pair != nil {
			text = o.Pair.Left
			pq.Rights = append(pq.Rights, PublicRight{Index: i, Text: o.Pair.Right})
		}
		pq.Options = append(pq.Options, PublicOption{Text: text})
	}
	switch q.Type {
	case Order:
		sort.SliceStable(pq.Options, func(i, j int) bool {
			return pq.Options[i].Text < pq.Options[j].Text
		})
	case Association:
		sort.SliceStable(pq.Rights, func(i, j int) bool {
			return pq.Rights[i].Text < pq.Rights[j].Text
		})
	}
	return pq
}
