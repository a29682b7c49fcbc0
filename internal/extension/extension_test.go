package extension

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/types"
)

type named string

func (n named) Name() string { return string(n) }

type staticDetector struct {
	named
	fs []types.Finding
}

func (d staticDetector) Detect(context.Context, string) ([]types.Finding, error) { return d.fs, nil }

type failingDetector struct{ named }

func (failingDetector) Detect(context.Context, string) ([]types.Finding, error) {
	return nil, errors.New("boom")
}

type panickingTransformer struct{ named }

func (panickingTransformer) Transform(context.Context, string, []types.Finding) (string, error) {
	panic("transform exploded")
}

type upperTransformer struct{ named }

func (upperTransformer) Transform(_ context.Context, text string, _ []types.Finding) (string, error) {
	return strings.ToUpper(text), nil
}

type suffixTransformer struct {
	named
	suffix string
}

func (s suffixTransformer) Transform(_ context.Context, text string, _ []types.Finding) (string, error) {
	return text + s.suffix, nil
}

type slowTransformer struct{ named }

func (slowTransformer) Transform(ctx context.Context, text string, _ []types.Finding) (string, error) {
	time.Sleep(200 * time.Millisecond)
	return "late", nil
}

func TestDetect_SkipsFailuresAndNonDetectors(t *testing.T) {
	var failed []string
	reg := NewRegistry(Options{OnFailure: func(p, phase string) { failed = append(failed, p+"/"+phase) }},
		named("plain"),
		failingDetector{named("bad")},
		staticDetector{named("good"), []types.Finding{{Kind: "x", Start: 0, End: 3}}},
	)
	fs := reg.Detect(context.Background(), "abcdef")
	require.Len(t, fs, 1)
	assert.Equal(t, "abc", fs[0].Text)
	assert.Equal(t, []string{"bad/detect"}, failed)
}

func TestTransform_OrderAndIsolation(t *testing.T) {
	var failed []string
	reg := NewRegistry(Options{OnFailure: func(p, phase string) { failed = append(failed, p) }},
		suffixTransformer{named("a"), "-a"},
		panickingTransformer{named("boom")},
		upperTransformer{named("up")},
		suffixTransformer{named("b"), "-b"},
	)
	out := reg.Transform(context.Background(), "doc", nil)
	assert.Equal(t, "DOC-A-b", out)
	assert.Equal(t, []string{"boom"}, failed)
}

func TestTransform_TimeoutKeepsBuffer(t *testing.T) {
	reg := NewRegistry(Options{Timeout: 20 * time.Millisecond}, slowTransformer{named("slow")})
	assert.Equal(t, "doc", reg.Transform(context.Background(), "doc", nil))
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	assert.Empty(t, reg.Detect(context.Background(), "x"))
	assert.Equal(t, "x", reg.Transform(context.Background(), "x", nil))
}

func TestValidSpans(t *testing.T) {
	text := "名字 Bob"
	got := ValidSpans(text, []types.Finding{
		{Kind: "ok", Start: 7, End: 10},
		{Kind: "", Start: 0, End: 3},
		{Kind: "mid-rune", Start: 1, End: 3},
		{Kind: "out", Start: 7, End: 11},
		{Kind: "empty", Start: 4, End: 4},
		{Kind: "mismatch", Start: 7, End: 10, Text: "Ann"},
		{Kind: "han", Start: 0, End: 6, Text: "名字"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Bob", got[0].Text)
	assert.Equal(t, "han", got[1].Kind)
}
