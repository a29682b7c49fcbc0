package redact

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/detectors"
	"github.com/privaudit/privaudit/internal/types"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" FULL ")
	require.NoError(t, err)
	assert.Equal(t, Full, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Smart, s)

	_, err = ParseStrategy("blur")
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "full, smart or label")
}

func TestMask_SmartStyles(t *testing.T) {
	r := New(Options{})
	cases := []struct {
		kind, text, want string
	}{
		{"email", "a@b.com", "*@b.com"},
		{"email", "jonathan@example.org", "jon***an@example.org"},
		{"phone_cn", "13912345678", "139****5678"},
		{"phone_cn", "1234567", "*******"},
		{"custom", "abcdef", "abc*ef"},
		{"custom", "abcde", "*****"},
		{"custom", "北京市朝阳区", "北京市*阳区"},
	}
	for _, c := range cases {
		got := r.Mask(types.Finding{Kind: c.kind, Text: c.text}, Smart)
		assert.Equal(t, c.want, got, "%s %q", c.kind, c.text)
	}
}

func TestMask_StyleOverride(t *testing.T) {
	r := New(Options{MaskChar: '#', Styles: map[string]Style{"employee_id": StyleNumeric, "email": StyleMiddle}})
	assert.Equal(t, "EMP##0042", r.Mask(types.Finding{Kind: "employee_id", Text: "EMP-00042"}, Smart))
	assert.Equal(t, "a@b##om", r.Mask(types.Finding{Kind: "email", Text: "a@b.com"}, Smart))
}

func TestRedact_FullKeepsCharacterCount(t *testing.T) {
	text := "联系 张三 today"
	fs := []types.Finding{{Kind: "person", Start: 7, End: 13}}
	out, err := New(Options{}).Redact(text, fs, Full)
	require.NoError(t, err)
	assert.Equal(t, "联系 ** today", out)
	assert.Equal(t, utf8.RuneCountInString(text), utf8.RuneCountInString(out))
}

func TestRedact_UnsortedInputAccepted(t *testing.T) {
	text := "x 13912345678 y a@b.com"
	fs := []types.Finding{
		{Kind: "email", Start: 16, End: 23},
		{Kind: "phone_cn", Start: 2, End: 13},
	}
	out, err := New(Options{}).Redact(text, fs, Label)
	require.NoError(t, err)
	assert.Equal(t, "x [PHONE_CN] y [EMAIL]", out)
}

func TestRedact_RejectsBadFindings(t *testing.T) {
	r := New(Options{})
	text := "名字 abc"
	bad := [][]types.Finding{
		{{Kind: "x", Start: 0, End: 20}},
		{{Kind: "x", Start: 1, End: 3}},
		{{Kind: "x", Start: 7, End: 10, Text: "zzz"}},
		{{Kind: "x", Start: 0, End: 6}, {Kind: "y", Start: 3, End: 9}},
		{{Kind: "x", Start: 4, End: 4}},
	}
	for i, fs := range bad {
		_, err := r.Redact(text, fs, Full)
		assert.True(t, errors.Is(err, ErrBadFinding), "case %d: %v", i, err)
	}
}

func TestRedact_NoFindings(t *testing.T) {
	out, err := New(Options{}).Redact("plain", nil, Smart)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestDiff(t *testing.T) {
	assert.Equal(t, "", Diff("same\n", "same\n", DiffOptions{}))

	d := Diff("a\nsecret\n", "a\n******\n", DiffOptions{FromName: "in.txt", ToName: "out.txt"})
	assert.True(t, strings.HasPrefix(d, "--- in.txt\n+++ out.txt\n"), d)
	assert.Contains(t, d, "-secret\n")
	assert.Contains(t, d, "+******\n")

	// trailing partial lines stay on their own line
	d = Diff("x\nend", "x\nEND", DiffOptions{})
	assert.Contains(t, d, "-end\n+END\n")

	d = Diff(strings.Repeat("a", 100), strings.Repeat("b", 100), DiffOptions{MaxBytes: 10})
	assert.Contains(t, d, "diff omitted")
}

func TestRedactProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)
	reg := detectors.NewRegistry(detectors.Options{Extended: true})
	r := New(Options{})

	pieces := []string{"a@b.com", "13912345678", "4111111111111111", " ", "\n", "名字", "x", "110101199003071234", "*", ","}
	text := gen.SliceOf(gen.IntRange(0, len(pieces)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(pieces[i])
		}
		return b.String()
	})

	properties.Property("full masking is idempotent on masked spans", prop.ForAll(func(s string) bool {
		fs := reg.Detect(s)
		once, moved, err := r.rewrite(s, fs, Full)
		if err != nil {
			return false
		}
		for _, m := range moved {
			if strings.Trim(m.Text, "*") != "" {
				return false
			}
		}
		twice, err := r.Redact(once, moved, Full)
		return err == nil && twice == once
	}, text))

	properties.Property("full masking preserves character count", prop.ForAll(func(s string) bool {
		out, err := r.Redact(s, reg.Detect(s), Full)
		return err == nil && utf8.RuneCountInString(out) == utf8.RuneCountInString(s)
	}, text))

	properties.Property("text outside findings is untouched", prop.ForAll(func(s string) bool {
		fs := reg.Detect(s)
		out, moved, err := r.rewrite(s, fs, Smart)
		if err != nil {
			return false
		}
		prevIn, prevOut := 0, 0
		for i, f := range fs {
			if s[prevIn:f.Start] != out[prevOut:moved[i].Start] {
				return false
			}
			prevIn, prevOut = f.End, moved[i].End
		}
		return s[prevIn:] == out[prevOut:]
	}, text))

	properties.TestingRun(t)
}
