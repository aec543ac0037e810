package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ParseQuiz decodes a quiz document and fills in missing IDs and positions.
// Questions keep the order they appear in unless positions are given.
func ParseQuiz(data []byte) (*Quiz, error) {
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	if len(q.Questions) == 0 {
		return nil, errors.New("quiz has no questions")
	}
	if q.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		q.ID = id
	}

	explicit := false
	for _, question := range q.Questions {
		if question.Position != 0 {
			explicit = true
			break
		}
	}
	for i, question := range q.Questions {
		if question == nil {
			return nil, fmt.Errorf("question %d is empty", i)
		}
		if question.ID == uuid.Nil {
			question.ID = uuid.New()
		}
		question.QuizID = q.ID
		if !explicit {
			question.Position = i
		}
		if err := validateQuestion(question); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}
	q.SortQuestions()
	return &q, nil
}

func validateQuestion(q *Question) error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown type %q", q.Type)
	}
	if q.Points < 0 || q.TimeGiven < 0 {
		return errors.New("points and timeGiven must not be negative")
	}
	if len(q.Options) == 0 {
		return errors.New("no options")
	}
	switch q.Type {
	case Association:
		for _, o := range q.Options {
			if o.Pair == nil {
				return errors.New("association options need a pair")
			}
		}
	case Order:
		// CorrectOrder carries the answer
	default:
		for _, o := range q.Options {
			if o.IsCorrect {
				return nil
			}
		}
		return errors.New("no correct option")
	}
	return nil
}
