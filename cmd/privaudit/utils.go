package privaudit

import (
	"os"
	"os/user"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/metrics"
	"github.com/privaudit/privaudit/pkg/core"
)

// pick helpers resolve a setting: CLI flag first, then each config layer
// in order (already merged env > local > global), then the default.

func pickString(cli string, layers ...*string) string {
	if cli != "" {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func pickInt(cli int, layers ...*int) int {
	if cli != 0 {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickInt64(cli int64, layers ...*int64) int64 {
	if cli != 0 {
		return cli
	}
	for _, v := range layers {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickBool(cli bool, layers ...*bool) bool {
	if cli {
		return true
	}
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return false
}

// boolOr returns the first set layer, or def when none is set.
func boolOr(def bool, layers ...*bool) bool {
	for _, v := range layers {
		if v != nil {
			return *v
		}
	}
	return def
}

func (a *app) strategy(flag string) (core.Strategy, error) {
	return core.ParseStrategy(pickString(flag, a.cfg.Strategy))
}

// actor falls back to the login name.
func (a *app) actor(flag string) string {
	if s := pickString(flag, a.cfg.Actor); s != "" {
		return s
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// pipeline builds the detection pipeline from config. m may be nil.
func (a *app) pipeline(diff bool, m *metrics.Metrics) (*core.Pipeline, error) {
	cfg := a.cfg
	timeout := time.Duration(0)
	if cfg.ExtensionTimeout != nil && *cfg.ExtensionTimeout != "" {
		d, err := time.ParseDuration(*cfg.ExtensionTimeout)
		if err != nil {
			return nil, errors.WithHint(errors.Wrap(err, "extension_timeout"), "use a Go duration such as 2s")
		}
		timeout = d
	}
	providers, err := core.Providers(pickString("", cfg.Extensions), pickString("", cfg.NERURL), timeout)
	if err != nil {
		return nil, err
	}
	pc := core.PipelineConfig{
		ExtendedRules:    boolOr(true, cfg.ExtendedRules),
		RulesFile:        pickString("", cfg.RulesFile),
		Policy:           pickString("", cfg.Policy),
		Enable:           pickString("", cfg.Enable),
		Disable:          pickString("", cfg.Disable),
		MaskChar:         pickString("", cfg.MaskChar),
		MaskStyles:       cfg.MaskStyles,
		Extensions:       providers,
		ExtensionTimeout: timeout,
		Diff:             diff,
		DiffMaxBytes:     pickInt(0, cfg.DiffMaxBytes),
		Logger:           a.log,
	}
	if m != nil {
		pc.OnExtensionFailure = m.ExtensionFailure
	}
	return core.NewPipeline(pc)
}

func (a *app) ledgerConfig() core.LedgerConfig {
	lc := a.cfg.LedgerOrEmpty()
	return core.LedgerConfig{
		Backend: pickString(a.backend, lc.Backend),
		Path:    pickString(a.ledgerPath, lc.Path),
		DSN:     pickString(a.dsn, lc.DSN),
		Codec:   pickString(a.codec, lc.Codec),
		Logger:  a.log,
	}
}

// openLedger opens the configured ledger. m may be nil.
func (a *app) openLedger(m *metrics.Metrics) (*core.Ledger, error) {
	lc := a.ledgerConfig()
	if m != nil {
		lc.Observer = m
	}
	return core.OpenLedger(lc)
}
