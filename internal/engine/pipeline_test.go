package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/detectors"
	"github.com/privaudit/privaudit/internal/extension"
	"github.com/privaudit/privaudit/internal/extension/address"
	"github.com/privaudit/privaudit/internal/redact"
	"github.com/privaudit/privaudit/internal/types"
)

type brokenProvider struct{}

func (brokenProvider) Name() string { return "broken" }

func (brokenProvider) Detect(context.Context, string) ([]types.Finding, error) {
	return nil, errors.New("sidecar down")
}

func newPipeline(providers ...extension.Provider) *Pipeline {
	p := &Pipeline{Rules: detectors.NewBase(), Redactor: redact.New(redact.Options{})}
	if len(providers) > 0 {
		p.Extensions = extension.NewRegistry(extension.Options{}, providers...)
	}
	return p
}

func TestPipeline_Process(t *testing.T) {
	p := newPipeline()
	res, err := p.Process(context.Background(), "mail a@b.com or 13912345678", redact.Label)
	require.NoError(t, err)
	assert.Equal(t, "mail [EMAIL] or [PHONE_CN]", res.Redacted)
	require.Len(t, res.Findings, 2)
	assert.Equal(t, "email", res.Findings[0].Kind)
	assert.Empty(t, res.Diff)
}

func TestPipeline_Diff(t *testing.T) {
	p := newPipeline()
	p.Diff = &redact.DiffOptions{}
	res, err := p.Process(context.Background(), "name: Alice\nmail: alice@example.com\n", redact.Smart)
	require.NoError(t, err)
	assert.True(t, strings.Contains(res.Diff, "+mail: *****@example.com"), res.Diff)
}

func TestPipeline_InvalidText(t *testing.T) {
	_, err := newPipeline().Process(context.Background(), "bad \xff", redact.Full)
	assert.True(t, errors.Is(err, types.ErrInvalidText))
	_, err = newPipeline().Detect(context.Background(), "bad \xff")
	assert.True(t, errors.Is(err, types.ErrInvalidText))
}

func TestPipeline_ExtensionFailureIsSkipped(t *testing.T) {
	var failures []string
	p := newPipeline()
	p.Extensions = extension.NewRegistry(extension.Options{
		OnFailure: func(provider, phase string) { failures = append(failures, provider+"/"+phase) },
	}, brokenProvider{}, address.New())

	res, err := p.Process(context.Background(), "寄到上海市浦东新区世纪大道100号 a@b.com", redact.Full)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken/detect"}, failures)
	assert.Equal(t, "寄到"+address.Placeholder+" *******", res.Redacted)
}

func TestPipeline_DetectOnly(t *testing.T) {
	fs, err := newPipeline().Detect(context.Background(), "nothing here")
	require.NoError(t, err)
	assert.Empty(t, fs)
}
