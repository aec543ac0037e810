// Package scoring decides correctness and awards points for submitted answers.
// Everything here is pure: no clocks, no storage.
package scoring

import (
	"math"
	"sort"

	"github.com/jason-s-yu/quizlive/internal/models"
)

// Result is the outcome of scoring one submission.
type Result struct {
	IsCorrect bool `json:"isCorrect"`
	Points    int  `json:"points"`
}

// Score evaluates value against q. elapsedMillis is measured from the start of
// the question on the server clock.
func Score(q *models.Question, value models.AnswerValue, elapsedMillis int64, settings models.Settings) Result {
	if q == nil || !IsCorrect(q, value) {
		return Result{}
	}
	return Result{IsCorrect: true, Points: Points(q.Points, MaxTimeMillis(q, settings), elapsedMillis)}
}

// MaxTimeMillis is the question's time limit, falling back to the session default.
func MaxTimeMillis(q *models.Question, settings models.Settings) int64 {
	secs := q.TimeGiven
	if secs <= 0 {
		secs = settings.SecondsPerQuestion
	}
	if secs <= 0 {
		secs = models.DefaultSecondsPerQuestion
	}
	return int64(secs) * 1000
}

// Points awards full credit at zero elapsed time, decaying linearly to half
// credit at maxMillis and never below.
func Points(points int, maxMillis, elapsedMillis int64) int {
	if elapsedMillis < 0 {
		elapsedMillis = 0
	}
	factor := 1.0
	if maxMillis > 0 {
		factor = math.Max(0, float64(maxMillis-elapsedMillis)/float64(maxMillis))
	}
	return int(math.Round(float64(points) * (0.5 + 0.5*factor)))
}

// IsCorrect dispatches on the question type. Malformed values are incorrect.
func IsCorrect(q *models.Question, value models.AnswerValue) bool {
	if value.IsEmpty() {
		return false
	}
	switch q.Type {
	case models.MultipleChoice:
		return multipleChoiceCorrect(q, value)
	case models.TrueFalse:
		return trueFalseCorrect(q, value)
	case models.Classic:
		return classicCorrect(q, value)
	case models.Order:
		return orderCorrect(q, value)
	case models.Association:
		return associationCorrect(q, value)
	case models.FindIntruder:
		return findIntruderCorrect(q, value)
	default:
		return false
	}
}

func correctIndices(q *models.Question) []int {
	var idx []int
	for i, o := range q.Options {
		if o.IsCorrect {
			idx = append(idx, i)
		}
	}
	return idx
}

func multipleChoiceCorrect(q *models.Question, value models.AnswerValue) bool {
	want := correctIndices(q)
	if len(want) == 0 {
		return false
	}
	got, err := value.AsIndices()
	if err != nil || len(got) != len(want) {
		return false
	}
	if len(want) == 1 {
		return got[0] == want[0]
	}
	wantSet := make(map[int]struct{}, len(want))
	for _, i := range want {
		wantSet[i] = struct{}{}
	}
	seen := make(map[int]struct{}, len(got))
	for _, i := range got {
		if _, ok := wantSet[i]; !ok {
			return false
		}
		if _, dup := seen[i]; dup {
			return false
		}
		seen[i] = struct{}{}
	}
	return true
}

func trueFalseCanonical(q *models.Question) (bool, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			n := NormalizeText(o.Text)
			return n == "true" || n == "vrai", true
		}
	}
	return false, false
}

func trueFalseCorrect(q *models.Question, value models.AnswerValue) bool {
	want, ok := trueFalseCanonical(q)
	if !ok {
		return false
	}
	got, err := value.AsBool()
	return err == nil && got == want
}

func classicCorrect(q *models.Question, value models.AnswerValue) bool {
	text, err := value.AsText()
	if err != nil {
		return false
	}
	got := NormalizeText(text)
	if got == "" {
		return false
	}
	for _, o := range q.Options {
		if o.IsCorrect && NormalizeText(o.Text) == got {
			return true
		}
	}
	return false
}

func orderCanonical(q *models.Question) []string {
	opts := make([]models.Option, len(q.Options))
	copy(opts, q.Options)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].CorrectOrder < opts[j].CorrectOrder })
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Text
	}
	return out
}

func orderCorrect(q *models.Question, value models.AnswerValue) bool {
	want := orderCanonical(q)
	got, err := value.AsSequence()
	if err != nil || len(got) != len(want) || len(want) == 0 {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func associationCanonical(q *models.Question) []models.Pair {
	var pairs []models.Pair
	for _, o := range q.Options {
		if o.IsCorrect && o.Pair != nil {
			pairs = append(pairs, *o.Pair)
		}
	}
	return pairs
}

// associationCorrect resolves each {leftIndex, rightIndex} against the option
// list: the left side of option leftIndex paired with the right side of option
// rightIndex.
func associationCorrect(q *models.Question, value models.AnswerValue) bool {
	want := associationCanonical(q)
	got, err := value.AsPairs()
	if err != nil || len(got) != len(want) || len(want) == 0 {
		return false
	}
	wantSet := make(map[models.Pair]struct{}, len(want))
	for _, p := range want {
		wantSet[p] = struct{}{}
	}
	seen := make(map[models.IndexPair]struct{}, len(got))
	for _, ip := range got {
		if _, dup := seen[ip]; dup {
			return false
		}
		seen[ip] = struct{}{}
		if ip.Left < 0 || ip.Left >= len(q.Options) || ip.Right < 0 || ip.Right >= len(q.Options) {
			return false
		}
		l, r := q.Options[ip.Left].Pair, q.Options[ip.Right].Pair
		if l == nil || r == nil {
			return false
		}
		if _, ok := wantSet[models.Pair{Left: l.Left, Right: r.Right}]; !ok {
			return false
		}
	}
	return true
}

func findIntruderCorrect(q *models.Question, value models.AnswerValue) bool {
	want := correctIndices(q)
	if len(want) != 1 {
		return false
	}
	got, err := value.AsIndex()
	return err == nil && got == want[0]
}

// CorrectAnswer returns the canonical answer in the shape a client submits it.
func CorrectAnswer(q *models.Question) any {
	if q == nil {
		return nil
	}
	switch q.Type {
	case models.MultipleChoice:
		idx := correctIndices(q)
		if len(idx) == 1 {
			return idx[0]
		}
		return idx
	case models.TrueFalse:
		v, _ := trueFalseCanonical(q)
		return v
	case models.Classic:
		for _, o := range q.Options {
			if o.IsCorrect {
				return o.Text
			}
		}
		return ""
	case models.Order:
		return orderCanonical(q)
	case models.Association:
		return associationCanonical(q)
	case models.FindIntruder:
		if idx := correctIndices(q); len(idx) == 1 {
			return idx[0]
		}
		return nil
	default:
		return nil
	}
}
