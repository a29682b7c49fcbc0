package core

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/detectors"
	"github.com/privaudit/privaudit/internal/engine"
	"github.com/privaudit/privaudit/internal/extension"
	"github.com/privaudit/privaudit/internal/extension/address"
	"github.com/privaudit/privaudit/internal/extension/ner"
	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/ledger/filestore"
	"github.com/privaudit/privaudit/internal/ledger/pebblestore"
	"github.com/privaudit/privaudit/internal/ledger/pgstore"
	"github.com/privaudit/privaudit/internal/redact"
	"github.com/privaudit/privaudit/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Finding       = types.Finding
	Strategy      = redact.Strategy
	Pipeline      = engine.Pipeline
	Result        = engine.Result
	Ledger        = ledger.Ledger
	Entry         = ledger.Entry
	Receipt       = ledger.Receipt
	Provider      = extension.Provider
	Verification  = ledger.Verification
	VerifyOptions = ledger.VerifyOptions
)

// Strategies.
const (
	Full  = redact.Full
	Smart = redact.Smart
	Label = redact.Label
)

// Extension names accepted by Providers.
const (
	ExtensionAddress = address.Kind
	ExtensionNER     = "ner"
)

// PipelineConfig configures NewPipeline. The zero value is the base rule set
// with default masking.
type PipelineConfig struct {
	ExtendedRules bool
	RulesFile     string
	// Policy is "permissive" (default) or "strict".
	Policy  string
	Enable  string
	Disable string

	MaskChar string
	// MaskStyles maps a kind to email, numeric or middle.
	MaskStyles map[string]string

	Extensions       []Provider
	ExtensionTimeout time.Duration
	// OnExtensionFailure is called once per failed provider call.
	OnExtensionFailure func(provider, phase string)

	// Diff makes Process fill Result.Diff.
	Diff         bool
	DiffMaxBytes int

	Logger *slog.Logger
}

// NewPipeline builds a Pipeline. Bad rule files degrade to the rules that
// loaded; bad option values are errors.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	policy, err := parsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	styles, err := parseStyles(cfg.MaskStyles)
	if err != nil {
		return nil, err
	}
	var mask rune
	if cfg.MaskChar != "" {
		if utf8.RuneCountInString(cfg.MaskChar) != 1 {
			return nil, errors.WithHint(errors.Newf("mask char %q is not a single character", cfg.MaskChar), "set mask_char to one character, e.g. \"*\"")
		}
		mask, _ = utf8.DecodeRuneInString(cfg.MaskChar)
	}

	p := &Pipeline{
		Rules: detectors.NewRegistry(detectors.Options{
			Extended:  cfg.ExtendedRules,
			RulesFile: cfg.RulesFile,
			Policy:    policy,
			Enable:    cfg.Enable,
			Disable:   cfg.Disable,
			Logger:    cfg.Logger,
		}),
		Redactor: redact.New(redact.Options{MaskChar: mask, Styles: styles}),
	}
	if len(cfg.Extensions) > 0 {
		p.Extensions = extension.NewRegistry(extension.Options{
			Timeout:   cfg.ExtensionTimeout,
			Logger:    cfg.Logger,
			OnFailure: cfg.OnExtensionFailure,
		}, cfg.Extensions...)
	}
	if cfg.Diff {
		p.Diff = &redact.DiffOptions{MaxBytes: cfg.DiffMaxBytes}
	}
	return p, nil
}

func parsePolicy(s string) (detectors.Policy, error) {
	switch p := detectors.Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", detectors.PolicyPermissive:
		return detectors.PolicyPermissive, nil
	case detectors.PolicyStrict:
		return p, nil
	}
	return "", errors.WithHint(errors.Newf("unknown policy %q", s), "use permissive or strict")
}

func parseStyles(in map[string]string) (map[string]redact.Style, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]redact.Style, len(in))
	for kind, name := range in {
		switch st := redact.Style(strings.ToLower(name)); st {
		case redact.StyleEmail, redact.StyleNumeric, redact.StyleMiddle:
			out[kind] = st
		default:
			return nil, errors.WithHint(errors.Newf("unknown mask style %q for %s", name, kind), "use email, numeric or middle")
		}
	}
	return out, nil
}

// Providers resolves a comma-separated list of built-in extension names.
func Providers(names, nerURL string, timeout time.Duration) ([]Provider, error) {
	var out []Provider
	for _, name := range strings.Split(names, ",") {
		switch name = strings.TrimSpace(name); name {
		case "":
		case ExtensionAddress:
			out = append(out, address.New())
		case ExtensionNER:
			if nerURL == "" {
				return nil, errors.WithHint(errors.New("ner extension needs a sidecar URL"), "set ner_url or PRIVAUDIT_NER_URL")
			}
			out = append(out, ner.New(nerURL, timeout))
		default:
			return nil, errors.WithHintf(errors.Newf("unknown extension %q", name), "available: %s, %s", ExtensionAddress, ExtensionNER)
		}
	}
	return out, nil
}

// ParseStrategy validates a strategy name; empty means Smart.
func ParseStrategy(s string) (Strategy, error) { return redact.ParseStrategy(s) }

// Ledger backends.
const (
	BackendPebble   = "pebble"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// DefaultDir holds privaudit's local state.
const DefaultDir = ".privaudit"

// LedgerConfig selects a ledger store.
type LedgerConfig struct {
	// Backend is pebble (default), file or postgres.
	Backend string
	// Path is the pebble directory or the JSONL file. Defaults live under
	// DefaultDir.
	Path string
	// DSN is the PostgreSQL connection string for the postgres backend.
	DSN   string
	Codec string

	Observer ledger.Observer
	Logger   *slog.Logger
}

// DefaultLedgerPath returns the default path for backend.
func DefaultLedgerPath(backend string) string {
	if backend == BackendFile {
		return filepath.Join(DefaultDir, "ledger.jsonl")
	}
	return filepath.Join(DefaultDir, "ledger")
}

// StateDir returns the directory holding the ledger's local companions, such
// as the incremental cache. It is the parent of the ledger path, never the
// pebble data directory itself.
func (c LedgerConfig) StateDir() string {
	switch strings.ToLower(c.Backend) {
	case BackendPostgres, "pg":
		return DefaultDir
	}
	p := c.Path
	if p == "" {
		p = DefaultLedgerPath(c.Backend)
	}
	return filepath.Dir(p)
}

// OpenLedger opens the configured store and wraps it in a Ledger.
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	codec, err := ledger.ParseCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	path := cfg.Path
	if path == "" {
		path = DefaultLedgerPath(cfg.Backend)
	}

	var st ledger.Store
	switch strings.ToLower(cfg.Backend) {
	case "", BackendPebble:
		st, err = pebblestore.Open(path, pebblestore.Options{})
	case BackendFile:
		st, err = filestore.Open(path)
	case BackendPostgres, "pg":
		if cfg.DSN == "" {
			return nil, errors.WithHint(errors.New("postgres backend needs a DSN"), "set ledger.dsn or PRIVAUDIT_LEDGER_DSN")
		}
		st, err = pgstore.Open(context.Background(), cfg.DSN, cfg.Logger)
	default:
		return nil, errors.WithHintf(errors.Newf("unknown ledger backend %q", cfg.Backend), "use %s, %s or %s", BackendPebble, BackendFile, BackendPostgres)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open ledger")
	}

	opts := []ledger.Option{ledger.WithCodec(codec)}
	if cfg.Logger != nil {
		opts = append(opts, ledger.WithLogger(cfg.Logger))
	}
	if cfg.Observer != nil {
		opts = append(opts, ledger.WithObserver(cfg.Observer))
	}
	return ledger.New(st, opts...), nil
}
