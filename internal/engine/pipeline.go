package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/detectors"
	"github.com/privaudit/privaudit/internal/extension"
	"github.com/privaudit/privaudit/internal/redact"
	"github.com/privaudit/privaudit/internal/types"
)

// Pipeline runs detection and redaction for one document at a time. It is
// safe for concurrent use.
type Pipeline struct {
	Rules *detectors.Registry
	// Extensions may be nil.
	Extensions *extension.Registry
	Redactor   *redact.Redactor
	// Diff, when non-nil, makes Process fill Result.Diff.
	Diff *redact.DiffOptions
}

// Result is the outcome of processing one document.
type Result struct {
	Findings []types.Finding `json:"findings"`
	Redacted string          `json:"redacted"`
	Diff     string          `json:"diff,omitempty"`
}

// Process detects PII in text, masks it with strategy s and applies
// extension transforms. Extension faults are logged and skipped; invalid
// input is returned as an error.
func (p *Pipeline) Process(ctx context.Context, text string, s redact.Strategy) (Result, error) {
	if err := types.CheckText(text); err != nil {
		return Result{}, err
	}
	extra := p.Extensions.Detect(ctx, text)
	findings := p.Rules.Detect(text, extra...)

	redacted, moved, err := p.Redactor.Apply(text, findings, s)
	if err != nil {
		return Result{}, errors.Wrap(err, "redact")
	}
	redacted = p.Extensions.Transform(ctx, redacted, moved)

	res := Result{Findings: findings, Redacted: redacted}
	if p.Diff != nil {
		res.Diff = redact.Diff(text, redacted, *p.Diff)
	}
	return res, nil
}

// Detect runs detection only.
func (p *Pipeline) Detect(ctx context.Context, text string) ([]types.Finding, error) {
	if err := types.CheckText(text); err != nil {
		return nil, err
	}
	return p.Rules.Detect(text, p.Extensions.Detect(ctx, text)...), nil
}
