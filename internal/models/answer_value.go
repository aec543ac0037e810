package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// AnswerValue is a raw submitted answer: a scalar, a list or a list of index pairs.
// Interpretation depends on the question type.
type AnswerValue json.RawMessage

// ErrAnswerShape is returned when a value does not have the shape a type expects.
var ErrAnswerShape = errors.New("answer has the wrong shape")

// IndexPair is one {leftIndex, rightIndex} association.
type IndexPair struct {
	Left  int `json:"leftIndex"`
	Right int `json:"rightIndex"`
}

// NewAnswerValue marshals v into an AnswerValue.
func NewAnswerValue(v any) (AnswerValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return AnswerValue(b), nil
}

// MustAnswer is NewAnswerValue for literals; it panics on marshal failure.
func MustAnswer(v any) AnswerValue {
	a, err := NewAnswerValue(v)
	if err != nil {
		panic(err)
	}
	return a
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return []byte(a), nil
}

func (a *AnswerValue) UnmarshalJSON(b []byte) error {
	*a = append((*a)[0:0], b...)
	return nil
}

// IsEmpty reports a missing or null value.
func (a AnswerValue) IsEmpty() bool {
	t := bytes.TrimSpace(a)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func (a AnswerValue) isList() bool {
	t := bytes.TrimSpace(a)
	return len(t) > 0 && t[0] == '['
}

// AsIndex decodes a single integer index. Numeric strings are accepted.
func (a AnswerValue) AsIndex() (int, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(a))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, ErrAnswerShape
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, ErrAnswerShape
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, ErrAnswerShape
	}
	return i, nil
}

// AsIndices decodes a list of indices. A scalar is treated as a one-element list.
func (a AnswerValue) AsIndices() ([]int, error) {
	if !a.isList() {
		i, err := a.AsIndex()
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	}
	var raw []AnswerValue
	if err := json.Unmarshal(a, &raw); err != nil {
		return nil, ErrAnswerShape
	}
	out := make([]int, 0, len(raw))
	for _, r := range raw {
		i, err := r.AsIndex()
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// AsBool decodes a boolean. The strings true/vrai/false/faux are accepted.
func (a AnswerValue) AsBool() (bool, error) {
	var v any
	if err := json.Unmarshal(a, &v); err != nil {
		return false, ErrAnswerShape
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "vrai":
			return true, nil
		case "false", "faux":
			return false, nil
		}
	}
	return false, ErrAnswerShape
}

// AsText decodes free text. Numbers are rendered as their literal text.
func (a AnswerValue) AsText() (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(a))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", ErrAnswerShape
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	}
	return "", ErrAnswerShape
}

// AsSequence decodes an ordered list of option texts.
func (a AnswerValue) AsSequence() ([]string, error) {
	if !a.isList() {
		return nil, ErrAnswerShape
	}
	var raw []AnswerValue
	if err := json.Unmarshal(a, &raw); err != nil {
		return nil, ErrAnswerShape
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s, err := r.AsText()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// AsPairs decodes a list of {leftIndex, rightIndex} objects.
func (a AnswerValue) AsPairs() ([]IndexPair, error) {
	if !a.isList() {
		return nil, ErrAnswerShape
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(a, &raw); err != nil {
		return nil, ErrAnswerShape
	}
	out := make([]IndexPair, 0, len(raw))
	for _, m := range raw {
		l, lok := m["leftIndex"]
		r, rok := m["rightIndex"]
		if !lok || !rok {
			return nil, ErrAnswerShape
		}
		li, err := AnswerValue(l).AsIndex()
		if err != nil {
			return nil, err
		}
		ri, err := AnswerValue(r).AsIndex()
		if err != nil {
			return nil, err
		}
		out = append(out, IndexPair{Left: li, Right: ri})
	}
	return out, nil
}

func (a AnswerValue) String() string {
	if len(a) == 0 {
		return "null"
	}
	return string(a)
}
