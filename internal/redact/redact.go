package redact

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/types"
)

// ErrBadFinding is returned when a finding set cannot be applied to a text.
var ErrBadFinding = errors.New("finding does not fit text")

// Strategy selects how a matched span is masked.
type Strategy string

const (
	// Full replaces every character with the mask character.
	Full Strategy = "full"
	// Smart keeps a kind-dependent head and tail visible.
	Smart Strategy = "smart"
	// Label replaces the span with its upper-cased kind in brackets.
	Label Strategy = "label"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Full, Smart, Label:
		return st, nil
	case "":
		return Smart, nil
	}
	return "", errors.WithHint(errors.Newf("unknown strategy %q", s), "use full, smart or label")
}

// Style is the smart-masking shape for a kind.
type Style string

const (
	// StyleEmail masks the middle of the local part and keeps @domain.
	StyleEmail Style = "email"
	// StyleNumeric keeps 3 leading and 4 trailing characters.
	StyleNumeric Style = "numeric"
	// StyleMiddle keeps 3 leading and 2 trailing characters.
	StyleMiddle Style = "middle"
)

// DefaultStyles maps built-in kinds to their smart style. Unlisted kinds use
// StyleMiddle.
var DefaultStyles = map[string]Style{
	"email":       StyleEmail,
	"phone_cn":    StyleNumeric,
	"id_card_cn":  StyleNumeric,
	"bank_card":   StyleNumeric,
	"iban":        StyleNumeric,
	"passport_cn": StyleNumeric,
	"us_ssn":      StyleNumeric,
}

// DefaultMask is the mask character used when none is configured.
const DefaultMask = '*'

// Options configures a Redactor.
type Options struct {
	MaskChar rune
	// Styles override DefaultStyles per kind.
	Styles map[string]Style
}

// Redactor applies masking strategies. It is safe for concurrent use.
type Redactor struct {
	mask   rune
	styles map[string]Style
}

// New returns a Redactor.
func New(opts Options) *Redactor {
	r := &Redactor{mask: opts.MaskChar, styles: make(map[string]Style, len(DefaultStyles)+len(opts.Styles))}
	if r.mask == 0 || r.mask == utf8.RuneError {
		r.mask = DefaultMask
	}
	for k, s := range DefaultStyles {
		r.styles[k] = s
	}
	for k, s := range opts.Styles {
		r.styles[k] = s
	}
	return r
}

// Redact returns text with every finding masked by strategy s. Findings must
// be non-overlapping spans of text; order does not matter.
func (r *Redactor) Redact(text string, findings []types.Finding, s Strategy) (string, error) {
	out, _, err := r.rewrite(text, findings, s)
	return out, err
}

// rewrite applies replacements from the rightmost span to the leftmost over
// the unmodified original and also returns each finding relocated to its
// masked span in the output.
func (r *Redactor) rewrite(text string, findings []types.Finding, s Strategy) (string, []types.Finding, error) {
	fs, err := checkFindings(text, findings)
	if err != nil {
		return "", nil, err
	}
	masks := make([]string, len(fs))
	pieces := make([]string, 0, 2*len(fs)+1)
	cursor := len(text)
	for i := len(fs) - 1; i >= 0; i-- {
		masks[i] = r.Mask(fs[i], s)
		pieces = append(pieces, text[fs[i].End:cursor], masks[i])
		cursor = fs[i].Start
	}
	pieces = append(pieces, text[:cursor])

	var b strings.Builder
	b.Grow(len(text))
	for i := len(pieces) - 1; i >= 0; i-- {
		b.WriteString(pieces[i])
	}

	moved := make([]types.Finding, len(fs))
	shift := 0
	for i, f := range fs {
		start := f.Start + shift
		moved[i] = types.Finding{Kind: f.Kind, Start: start, End: start + len(masks[i]), Text: masks[i]}
		shift += len(masks[i]) - f.Len()
	}
	return b.String(), moved, nil
}

func checkFindings(text string, findings []types.Finding) ([]types.Finding, error) {
	fs := append([]types.Finding(nil), findings...)
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Start < fs[j].Start })
	for i, f := range fs {
		if f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			return nil, errors.Wrapf(ErrBadFinding, "%s span [%d,%d) outside text of %d bytes", errors.Safe(f.Kind), f.Start, f.End, len(text))
		}
		if !utf8.RuneStart(text[f.Start]) || (f.End < len(text) && !utf8.RuneStart(text[f.End])) {
			return nil, errors.Wrapf(ErrBadFinding, "%s span [%d,%d) splits a character", errors.Safe(f.Kind), f.Start, f.End)
		}
		if f.Text != "" && f.Text != text[f.Start:f.End] {
			return nil, errors.Wrapf(ErrBadFinding, "%s span [%d,%d) text does not match source", errors.Safe(f.Kind), f.Start, f.End)
		}
		if i > 0 && f.Start < fs[i-1].End {
			return nil, errors.Wrapf(ErrBadFinding, "spans [%d,%d) and [%d,%d) overlap", fs[i-1].Start, fs[i-1].End, f.Start, f.End)
		}
		fs[i].Text = text[f.Start:f.End]
	}
	return fs, nil
}

// Mask returns the replacement for one finding.
func (r *Redactor) Mask(f types.Finding, s Strategy) string {
	switch s {
	case Full:
		return r.run(utf8.RuneCountInString(f.Text))
	case Label:
		return "[" + strings.ToUpper(f.Kind) + "]"
	}
	switch r.styles[f.Kind] {
	case StyleEmail:
		if at := strings.IndexByte(f.Text, '@'); at >= 0 {
			return r.middle(f.Text[:at], 3, 2) + f.Text[at:]
		}
		return r.middle(f.Text, 3, 2)
	case StyleNumeric:
		return r.middle(f.Text, 3, 4)
	default:
		return r.middle(f.Text, 3, 2)
	}
}

func (r *Redactor) run(n int) string {
	return strings.Repeat(string(r.mask), n)
}

// middle keeps head and tail characters and masks the rest. Text no longer
// than head+tail is masked entirely.
func (r *Redactor) middle(s string, head, tail int) string {
	rs := []rune(s)
	if len(rs) <= head+tail {
		return r.run(len(rs))
	}
	return string(rs[:head]) + r.run(len(rs)-head-tail) + string(rs[len(rs)-tail:])
}

// Apply is Redact that also returns each finding relocated to its masked
// span in the output, for transforms that run on the redacted text.
func (r *Redactor) Apply(text string, findings []types.Finding, s Strategy) (string, []types.Finding, error) {
	return r.rewrite(text, findings, s)
}
