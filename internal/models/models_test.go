package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValueAccessors(t *testing.T) {
	i, err := AnswerValue(`"2"`).AsIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	_, err = AnswerValue(`"two"`).AsIndex()
	assert.ErrorIs(t, err, ErrAnswerShape)

	idx, err := AnswerValue(`3`).AsIndices()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, idx)

	idx, err = AnswerValue(`[0, "2"]`).AsIndices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, idx)

	b, err := AnswerValue(`"Vrai"`).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = AnswerValue(`1`).AsBool()
	assert.ErrorIs(t, err, ErrAnswerShape)

	s, err := AnswerValue(`1789`).AsText()
	require.NoError(t, err)
	assert.Equal(t, "1789", s)

	seq, err := AnswerValue(`["a","b"]`).AsSequence()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seq)

	pairs, err := AnswerValue(`[{"leftIndex":0,"rightIndex":"1"}]`).AsPairs()
	require.NoError(t, err)
	assert.Equal(t, []IndexPair{{Left: 0, Right: 1}}, pairs)

	_, err = AnswerValue(`[{"leftIndex":0}]`).AsPairs()
	assert.ErrorIs(t, err, ErrAnswerShape)

	assert.True(t, AnswerValue(nil).IsEmpty())
	assert.True(t, AnswerValue(` null `).IsEmpty())
	assert.Equal(t, "null", AnswerValue(nil).String())
}

func TestAnswerValueRoundTripsInsideStructs(t *testing.T) {
	var body struct {
		Value AnswerValue `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"value":[1,2]}`), &body))
	assert.JSONEq(t, `[1,2]`, string(body.Value))

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":[1,2]}`, string(out))
}

func TestParseQuiz(t *testing.T) {
	doc := `{
		"title": "Capitals",
		"questions": [
			{"type": "CLASSIC", "text": "Capital of France?", "points": 100,
			 "options": [{"text": "Paris", "isCorrect": true}]},
			{"type": "TRUE_FALSE", "text": "Rome is in Italy", "points": 50,
			 "options": [{"text": "true", "isCorrect": true}, {"text": "false"}]}
		]
	}`
	q, err := ParseQuiz([]byte(doc))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, q.ID)
	require.Len(t, q.Questions, 2)
	for i, question := range q.Questions {
		assert.Equal(t, i, question.Position)
		assert.Equal(t, q.ID, question.QuizID)
		assert.NotEqual(t, uuid.Nil, question.ID)
	}
	assert.Equal(t, Classic, q.Questions[0].Type)
}

func TestParseQuizExplicitPositions(t *testing.T) {
	doc := `{"questions": [
		{"type": "CLASSIC", "text": "second", "position": 2, "options": [{"text": "b", "isCorrect": true}]},
		{"type": "CLASSIC", "text": "first", "position": 1, "options": [{"text": "a", "isCorrect": true}]}
	]}`
	q, err := ParseQuiz([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "first", q.Questions[0].Text)
	assert.Equal(t, "second", q.Questions[1].Text)
}

func TestParseQuizRejects(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"no questions":      `{"questions": []}`,
		"unknown type":      `{"questions": [{"type": "ESSAY", "options": [{"text": "a", "isCorrect": true}]}]}`,
		"no options":        `{"questions": [{"type": "CLASSIC"}]}`,
		"no correct option": `{"questions": [{"type": "MULTIPLE_CHOICE", "options": [{"text": "a"}]}]}`,
		"negative points":   `{"questions": [{"type": "CLASSIC", "points": -1, "options": [{"text": "a", "isCorrect": true}]}]}`,
		"missing pair":      `{"questions": [{"type": "ASSOCIATION", "options": [{"text": "a"}]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuiz([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestPublicHidesCorrectness(t *testing.T) {
	q := &Question{
		ID:   uuid.New(),
		Type: MultipleChoice,
		Text: "Capital of Italy?",
		Options: []Option{
			{Text: "Milan"},
			{Text: "Rome", IsCorrect: true},
		},
		Points: 200,
	}
	pq := q.Public(3, 30)
	assert.Equal(t, 3, pq.Index)
	assert.Equal(t, 30, pq.TimeGiven)
	assert.Equal(t, []PublicOption{{Text: "Milan"}, {Text: "Rome"}}, pq.Options)

	out, err := json.Marshal(pq)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "isCorrect")
}

func TestPublicOrderIsSorted(t *testing.T) {
	q := &Question{
		Type: Order,
		Options: []Option{
			{Text: "Caesar", CorrectOrder: 1},
			{Text: "Augustus", CorrectOrder: 2},
			{Text: "Nero", CorrectOrder: 3},
		},
		TimeGiven: 15,
	}
	pq := q.Public(0, 30)
	assert.Equal(t, 15, pq.TimeGiven)
	assert.Equal(t, []PublicOption{{Text: "Augustus"}, {Text: "Caesar"}, {Text: "Nero"}}, pq.Options)

	out, err := json.Marshal(pq)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "correctOrder")
}

func TestPublicAssociationSplitsSides(t *testing.T) {
	q := &Question{
		Type: Association,
		Options: []Option{
			{Pair: &Pair{Left: "France", Right: "Paris"}},
			{Pair: &Pair{Left: "Italy", Right: "Rome"}},
			{Pair: &Pair{Left: "Spain", Right: "Madrid"}},
		},
	}
	pq := q.Public(0, 30)
	assert.Equal(t, []PublicOption{{Text: "France"}, {Text: "Italy"}, {Text: "Spain"}}, pq.Options)
	assert.Equal(t, []PublicRight{
		{Index: 2, Text: "Madrid"},
		{Index: 0, Text: "Paris"},
		{Index: 1, Text: "Rome"},
	}, pq.Rights)

	out, err := json.Marshal(pq)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "pair")
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{}.Normalize()
	assert.Equal(t, DefaultMaxParticipants, s.MaxParticipants)
	assert.Equal(t, DefaultSecondsPerQuestion, s.SecondsPerQuestion)

	s = Settings{MaxParticipants: 500, SecondsPerQuestion: 10}.Normalize()
	assert.Equal(t, MaxParticipantsCap, s.MaxParticipants)
	assert.Equal(t, 10, s.SecondsPerQuestion)

	s = Settings{MaxParticipants: 4}.Normalize()
	assert.Equal(t, 4, s.MaxParticipants)
}

func TestParticipantAnswerFor(t *testing.T) {
	p := &GameParticipant{Answers: []Answer{{QuestionIndex: 1, Points: 80}}}
	a, ok := p.AnswerFor(1)
	require.True(t, ok)
	assert.Equal(t, 80, a.Points)
	_, ok = p.AnswerFor(0)
	assert.False(t, ok)

	c := p.Clone()
	c.Answers[0].Points = 0
	assert.Equal(t, 80, p.Answers[0].Points)
}

func TestRoleCanHost(t *testing.T) {
	assert.True(t, RoleOrganizer.CanHost())
	assert.False(t, RolePlayer.CanHost())
}
