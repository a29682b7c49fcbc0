package types

import (
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// ErrInvalidText is returned when input is not valid UTF-8.
var ErrInvalidText = errors.New("text is not valid UTF-8")

// Finding is one located PII occurrence. Start and End are byte offsets into
// the source text forming the half-open span [Start, End); Text is exactly
// source[Start:End].
type Finding struct {
	Kind  string `json:"kind"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Len returns the span width in bytes.
func (f Finding) Len() int { return f.End - f.Start }

// Overlaps reports whether two findings share at least one byte.
func (f Finding) Overlaps(o Finding) bool {
	return f.Start < o.End && o.Start < f.End
}

// CheckText returns ErrInvalidText if s is not valid UTF-8.
func CheckText(s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidText
	}
	return nil
}

// CountKinds tallies findings per kind.
func CountKinds(fs []Finding) map[string]int {
	out := make(map[string]int, len(fs))
	for _, f := range fs {
		out[f.Kind]++
	}
	return out
}
