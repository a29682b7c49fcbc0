package privaudit

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/atotto/clipboard"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/cache"
	"github.com/privaudit/privaudit/internal/engine"
	"github.com/privaudit/privaudit/internal/metrics"
	"github.com/privaudit/privaudit/internal/provenance"
)

type redactFlags struct {
	strategy    string
	actor       string
	out         string
	diff        bool
	dryRun      bool
	copy        bool
	incremental bool
	include     string
	exclude     string
	threads     int
	maxBytes    int64
	noDefaults  bool
	metricsFile string
	json        bool
}

func newRedactCmd(a *app) *cobra.Command {
	var f redactFlags
	cmd := &cobra.Command{
		Use:   "redact <file|dir>...",
		Short: "Redact PII from documents and record each redaction in the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRedact(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.strategy, "strategy", "", "masking strategy: full|smart|label (default smart)")
	fl.StringVar(&f.actor, "actor", "", "actor recorded in the ledger (default: login name)")
	fl.StringVar(&f.out, "out", "", "write outputs under this directory instead of <name>.redacted<ext>")
	fl.BoolVar(&f.diff, "diff", false, "print a unified diff per document")
	fl.BoolVar(&f.dryRun, "dry-run", false, "detect and redact without writing outputs or recording")
	fl.BoolVar(&f.copy, "copy", false, "copy the redacted text of a single document to the clipboard")
	fl.BoolVar(&f.incremental, "incremental", false, "skip documents unchanged since they were last recorded")
	fl.StringVar(&f.include, "include", "", "comma-separated include globs")
	fl.StringVar(&f.exclude, "exclude", "", "comma-separated exclude globs")
	fl.IntVar(&f.threads, "threads", 0, "worker count (0 = GOMAXPROCS)")
	fl.Int64Var(&f.maxBytes, "max-bytes", 0, "skip files larger than this when walking directories")
	fl.BoolVar(&f.noDefaults, "no-default-excludes", false, "do not skip VCS, dependency and binary paths")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fl.BoolVar(&f.json, "json", false, "emit the run summary as JSON")
	return cmd
}

func (a *app) runRedact(cmd *cobra.Command, args []string, f redactFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	strategy, err := a.strategy(f.strategy)
	if err != nil {
		return err
	}
	var m *metrics.Metrics
	if f.metricsFile != "" {
		m = metrics.New()
	}
	p, err := a.pipeline(f.diff, m)
	if err != nil {
		return err
	}

	b := &engine.Batch{
		Pipeline:   p,
		Provenance: provenance.NewResolver(),
		Metrics:    m,
		Logger:     a.log,
	}
	if !f.dryRun {
		l, err := a.openLedger(m)
		if err != nil {
			return err
		}
		defer l.Close()
		b.Ledger = l
	}
	if f.incremental && !f.dryRun {
		db, err := cache.Load(cache.DefaultPath(a.ledgerConfig().StateDir()))
		if err != nil {
			a.log.Warn("incremental cache unreadable, starting fresh", "error", err)
		}
		b.Cache = db
	}
	if !f.json {
		b.OnDocument = func(r engine.DocResult) { a.printDocument(out, r, f.diff) }
	}

	sum, runErr := b.Run(ctx, engine.BatchConfig{
		Paths: args,
		Walk: engine.WalkConfig{
			IncludeGlobs:      pickString(f.include, a.cfg.Include),
			ExcludeGlobs:      pickString(f.exclude, a.cfg.Exclude),
			MaxBytes:          pickInt64(f.maxBytes, a.cfg.MaxBytes),
			NoDefaultExcludes: f.noDefaults,
		},
		Threads:  pickInt(f.threads, a.cfg.Threads),
		Strategy: strategy,
		Actor:    a.actor(f.actor),
		OutDir:   f.out,
		DryRun:   f.dryRun,
	})

	if b.Cache != nil {
		if err := b.Cache.Save(); err != nil {
			a.log.Warn("could not save incremental cache", "error", err)
		}
	}
	if m != nil {
		if err := m.WriteTextfile(f.metricsFile); err != nil {
			runErr = errors.CombineErrors(runErr, err)
		}
	}

	if f.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else if len(sum.Documents) > 0 {
		a.printSummary(out, sum)
	}

	if f.copy {
		if err := copySingle(sum); err != nil {
			runErr = errors.CombineErrors(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := sum.Unaudited(); n > 0 {
		return errors.WithHint(errors.Newf("%d redacted document(s) were not recorded in the ledger", n),
			"the outputs were written but are not audited; fix the ledger and re-run redact on them")
	}
	if n := sum.Failed(); n > 0 {
		return errors.Newf("%d document(s) failed", n)
	}
	return nil
}

func (a *app) printDocument(w io.Writer, r engine.DocResult, diff bool) {
	line := fmt.Sprintf("%-18s %s", a.paint(w, outcomeStyle(r.Outcome), r.Outcome), r.Path)
	if r.Findings > 0 {
		line += fmt.Sprintf("  (%d findings)", r.Findings)
	}
	if r.Receipt.ID > 0 {
		line += a.paint(w, dimStyle, fmt.Sprintf("  #%d", r.Receipt.ID))
	}
	if r.Err != nil {
		line += ": " + r.Err.Error()
	}
	_, _ = fmt.Fprintln(w, line)
	if diff && r.Diff != "" {
		_, _ = fmt.Fprint(w, a.highlightDiff(w, r.Diff))
	}
}

func (a *app) printSummary(w io.Writer, sum engine.Summary) {
	findings := 0
	for _, d := range sum.Documents {
		findings += d.Findings
	}
	st := okStyle
	if sum.Unaudited() > 0 || sum.Failed() > 0 {
		st = badStyle
	}
	msg := fmt.Sprintf("%s documents, %s findings, %d recorded, %d skipped, %d failed, %d unaudited in %s",
		humanize.Comma(int64(len(sum.Documents))), humanize.Comma(int64(findings)),
		sum.Counts[metrics.OutcomeRecorded], sum.Counts[metrics.OutcomeSkipped],
		sum.Failed(), sum.Unaudited(), sum.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintln(w, a.paint(w, st, msg))
}

func copySingle(sum engine.Summary) error {
	var docs []engine.DocResult
	for _, d := range sum.Documents {
		if d.Outcome != metrics.OutcomeSkipped && d.Outcome != metrics.OutcomeFailed {
			docs = append(docs, d)
		}
	}
	if len(docs) != 1 {
		return errors.WithHint(errors.Newf("--copy needs exactly one redacted document, got %d", len(docs)), "pass a single file")
	}
	return errors.Wrap(clipboard.WriteAll(docs[0].Redacted), "copy to clipboard")
}
