package filter

import (
	"math"
	"strconv"
	"strings"
)

type numericKind int

const (
	numericEmpty numericKind = iota
	numericInvalid
	numericValid
)

// RawNumeric is a numeric text field as typed by the user: empty, invalid
// (mid-edit or garbage) or a valid number. It is only turned into a number on
// commit.
type RawNumeric struct {
	kind  numericKind
	text  string
	value float64
}

func ParseRaw(text string) RawNumeric {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return RawNumeric{kind: numericEmpty, text: text}
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return RawNumeric{kind: numericInvalid, text: text}
	}
	return RawNumeric{kind: numericValid, text: text, value: v}
}

func (r RawNumeric) Text() string  { return r.text }
func (r RawNumeric) IsEmpty() bool { return r.kind == numericEmpty }
func (r RawNumeric) IsValid() bool { return r.kind == numericValid }

// Value reports the parsed number; ok is false for empty and invalid input.
func (r RawNumeric) Value() (v float64, ok bool) {
	return r.value, r.kind == numericValid
}

// CommitVotes returns the committed minimum vote count: a non-negative integer,
// 0 for empty or invalid input.
func (r RawNumeric) CommitVotes() int {
	v, ok := r.Value()
	if !ok || v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// CommitRating returns the committed minimum rating in [0, 10], 0 for empty or
// invalid input.
func (r RawNumeric) CommitRating() float64 {
	v, ok := r.Value()
	if !ok {
		return 0
	}
	return min(max(v, 0), 10)
}
