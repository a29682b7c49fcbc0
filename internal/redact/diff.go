package redact

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DiffOptions controls unified diff rendering.
type DiffOptions struct {
	FromName string
	ToName   string
	// Context is the number of unchanged lines around each hunk; 0 means 3.
	Context int
	// MaxBytes caps the combined input size; 0 means no limit. Oversized
	// input yields a placeholder hunk.
	MaxBytes int
}

// Diff renders a line-oriented unified diff of original against redacted.
// Identical inputs produce an empty string.
func Diff(original, redacted string, opt DiffOptions) string {
	from, to := opt.FromName, opt.ToName
	if from == "" {
		from = "original"
	}
	if to == "" {
		to = "redacted"
	}
	if opt.MaxBytes > 0 && len(original)+len(redacted) > opt.MaxBytes {
		return omitted(from, to)
	}
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	u := difflib.UnifiedDiff{
		A:        splitLines(original),
		B:        splitLines(redacted),
		FromFile: from,
		ToFile:   to,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(from, to)
	}
	return s
}

// splitLines keeps line terminators and terminates a trailing partial line so
// hunks never run two lines together.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

func omitted(from, to string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", from, to)
}
