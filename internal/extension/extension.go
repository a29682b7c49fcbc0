// Package extension defines the capability interface that rule and transform
// providers implement, and the ordered registry that runs them with fault
// isolation.
package extension

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/logging"
	"github.com/privaudit/privaudit/internal/types"
)

// Provider is anything registered with the Registry. It may additionally
// implement Detector, Transformer, or both.
type Provider interface {
	Name() string
}

// Detector reports findings in text. Offsets are byte offsets into text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]types.Finding, error)
}

// Transformer rewrites an already-redacted buffer.
type Transformer interface {
	Transform(ctx context.Context, text string, findings []types.Finding) (string, error)
}

// Phase names used in failure reports.
const (
	PhaseDetect    = "detect"
	PhaseTransform = "transform"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 2 * time.Second

// Options configures a Registry.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// OnFailure is called once per failed provider call.
	OnFailure func(provider, phase string)
}

// Registry holds providers in registration order.
type Registry struct {
	providers []Provider
	timeout   time.Duration
	log       *slog.Logger
	onFailure func(provider, phase string)
}

// NewRegistry returns a registry over providers, kept in the given order.
func NewRegistry(opts Options, providers ...Provider) *Registry {
	r := &Registry{
		providers: append([]Provider(nil), providers...),
		timeout:   opts.Timeout,
		log:       opts.Logger,
		onFailure: opts.OnFailure,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.log = r.log.With("component", "extension")
	return r
}

// Providers returns the registered providers in order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	return append([]Provider(nil), r.providers...)
}

// Detect collects findings from every Detector. Failing providers are logged
// and skipped; findings with bad spans are dropped.
func (r *Registry) Detect(ctx context.Context, text string) []types.Finding {
	if r == nil {
		return nil
	}
	var out []types.Finding
	for _, p := range r.providers {
		d, ok := p.(Detector)
		if !ok {
			continue
		}
		fs, err := call(ctx, r.timeout, func(ctx context.Context) ([]types.Finding, error) {
			return d.Detect(ctx, text)
		})
		if err != nil {
			r.fail(p.Name(), PhaseDetect, err)
			continue
		}
		valid := ValidSpans(text, fs)
		if dropped := len(fs) - len(valid); dropped > 0 {
			r.log.Warn("dropped invalid extension findings", "provider", p.Name(), "dropped", dropped)
		}
		out = append(out, valid...)
	}
	return out
}

// Transform threads text through every Transformer in order. A failing
// transform leaves the buffer as it was.
func (r *Registry) Transform(ctx context.Context, text string, findings []types.Finding) string {
	if r == nil {
		return text
	}
	for _, p := range r.providers {
		tr, ok := p.(Transformer)
		if !ok {
			continue
		}
		next, err := call(ctx, r.timeout, func(ctx context.Context) (string, error) {
			return tr.Transform(ctx, text, findings)
		})
		if err == nil && !utf8.ValidString(next) {
			err = errors.Wrap(types.ErrInvalidText, "transform output")
		}
		if err != nil {
			r.fail(p.Name(), PhaseTransform, err)
			continue
		}
		text = next
	}
	return text
}

func (r *Registry) fail(provider, phase string, err error) {
	r.log.Warn("extension failed, skipping", "provider", provider, "phase", phase, logging.Err(err))
	if r.onFailure != nil {
		r.onFailure(provider, phase)
	}
}

// call runs fn under a deadline and converts panics into errors. A provider
// that ignores its context is abandoned once the deadline passes.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: errors.Newf("provider panicked: %v", p)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "provider did not finish")
	}
}

// ValidSpans keeps findings whose span lies inside text on rune boundaries,
// has a kind, and whose Text matches the source. An empty Text is filled in.
func ValidSpans(text string, fs []types.Finding) []types.Finding {
	out := make([]types.Finding, 0, len(fs))
	for _, f := range fs {
		if f.Kind == "" || f.Start < 0 || f.End > len(text) || f.Start >= f.End {
			continue
		}
		if !isRuneBoundary(text, f.Start) || !isRuneBoundary(text, f.End) {
			continue
		}
		src := text[f.Start:f.End]
		if f.Text == "" {
			f.Text = src
		} else if f.Text != src {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isRuneBoundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}
