package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/privaudit/privaudit/internal/cache"
	"github.com/privaudit/privaudit/internal/files"
	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/logging"
	"github.com/privaudit/privaudit/internal/metrics"
	"github.com/privaudit/privaudit/internal/provenance"
	"github.com/privaudit/privaudit/internal/redact"
	"github.com/privaudit/privaudit/internal/types"
)

// Recorder appends audit entries. *ledger.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) (ledger.Receipt, error)
}

// Meta keys written on every batch record.
const (
	MetaStrategy = "strategy"
	MetaFindings = "findings"
	MetaKinds    = "kinds"
	MetaRunID    = "run_id"
)

// BatchConfig controls one batch run.
type BatchConfig struct {
	Paths []string
	Walk  WalkConfig
	// Threads bounds concurrent documents; zero uses GOMAXPROCS.
	Threads  int
	Strategy redact.Strategy
	Actor    string
	// OutDir receives outputs at their relative paths. Empty writes
	// name.redacted.ext beside each input.
	OutDir string
	// DryRun skips writing outputs and recording.
	DryRun bool
}

// Batch processes many documents in parallel.
type Batch struct {
	Pipeline *Pipeline
	// Ledger may be nil only for dry runs.
	Ledger     Recorder
	Cache      *cache.DB
	Provenance *provenance.Resolver
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// OnDocument is called after each document, never concurrently.
	OnDocument func(DocResult)
}

// DocResult describes what happened to one document.
type DocResult struct {
	Path     string         `json:"path"`
	Output   string         `json:"output,omitempty"`
	Outcome  string         `json:"outcome"`
	Findings int            `json:"findings"`
	Kinds    map[string]int `json:"kinds,omitempty"`
	Receipt  ledger.Receipt `json:"receipt,omitempty"`
	Diff     string         `json:"-"`
	Redacted string         `json:"-"`
	Err      error          `json:"-"`
}

// Summary aggregates a batch run.
type Summary struct {
	RunID     string         `json:"run_id"`
	Documents []DocResult    `json:"documents"`
	Duration  time.Duration  `json:"duration"`
	Counts    map[string]int `json:"counts"`
	// Interrupted is set when cancellation stopped the run early.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Unaudited returns the number of documents redacted but not recorded.
func (s Summary) Unaudited() int { return s.Counts[metrics.OutcomeRedactedUnaudited] }

// Failed returns the number of documents that could not be processed.
func (s Summary) Failed() int { return s.Counts[metrics.OutcomeFailed] }

// Run processes every target under cfg.Paths. Cancellation is checked
// before each document; a document already started is finished and
// recorded.
func (b *Batch) Run(ctx context.Context, cfg BatchConfig) (Summary, error) {
	start := time.Now()
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "batch")
	if !cfg.DryRun && b.Ledger == nil {
		return Summary{}, errors.AssertionFailedf("batch without ledger must be a dry run")
	}

	targets, err := Collect(ctx, cfg.Paths, cfg.Walk)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{RunID: uuid.NewString(), Counts: map[string]int{}}
	log.Info("batch started", "run_id", sum.RunID, "documents", len(targets), "dry_run", cfg.DryRun)

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	var mu sync.Mutex
	report := func(r DocResult) {
		mu.Lock()
		defer mu.Unlock()
		sum.Documents = append(sum.Documents, r)
		sum.Counts[r.Outcome]++
		b.Metrics.Document(r.Outcome)
		if b.OnDocument != nil {
			b.OnDocument(r)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, t := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			report(b.document(context.WithoutCancel(ctx), cfg, sum.RunID, t, log))
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil && len(sum.Documents) < len(targets) {
		sum.Interrupted = true
	}

	sort.Slice(sum.Documents, func(i, j int) bool { return sum.Documents[i].Path < sum.Documents[j].Path })
	sum.Duration = time.Since(start)
	log.Info("batch finished", "run_id", sum.RunID, "documents", len(sum.Documents),
		"unaudited", sum.Unaudited(), "failed", sum.Failed(), "interrupted", sum.Interrupted)
	if sum.Interrupted {
		return sum, errors.Wrap(ctx.Err(), "batch interrupted")
	}
	return sum, nil
}

func (b *Batch) document(ctx context.Context, cfg BatchConfig, runID string, t Target, log *slog.Logger) DocResult {
	ref := filepath.ToSlash(filepath.Clean(t.Path))
	res := DocResult{Path: ref}
	fail := func(err error) DocResult {
		res.Outcome, res.Err = metrics.OutcomeFailed, err
		log.Warn("document failed", "path", ref, logging.Err(err))
		return res
	}

	content, err := os.ReadFile(t.Path)
	if err != nil {
		return fail(errors.Wrap(err, "read"))
	}
	if looksBinary(content) {
		res.Outcome = metrics.OutcomeSkipped
		return res
	}
	if b.Cache != nil && !cfg.DryRun && b.Cache.Unchanged(ref, content) {
		res.Outcome = metrics.OutcomeSkipped
		return res
	}
	text := string(content)
	if err := types.CheckText(text); err != nil {
		return fail(err)
	}

	out, err := b.Pipeline.Process(ctx, text, cfg.Strategy)
	if err != nil {
		return fail(err)
	}
	kinds := types.CountKinds(out.Findings)
	b.Metrics.Findings(kinds)
	res.Findings, res.Kinds, res.Diff, res.Redacted = len(out.Findings), kinds, out.Diff, out.Redacted

	if cfg.DryRun {
		res.Outcome = metrics.OutcomeDryRun
		return res
	}

	res.Output = outputPath(cfg.OutDir, t)
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(t.Path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(res.Output), 0o755); err != nil {
		return fail(errors.Wrap(err, "create output dir"))
	}
	if err := os.WriteFile(res.Output, []byte(out.Redacted), mode); err != nil {
		return fail(errors.Wrap(err, "write output"))
	}

	meta := map[string]string{
		MetaStrategy: string(cfg.Strategy),
		MetaFindings: strconv.Itoa(len(out.Findings)),
		MetaRunID:    runID,
	}
	if len(kinds) > 0 {
		meta[MetaKinds] = joinKinds(kinds)
	}
	if b.Provenance != nil {
		if info, ok := b.Provenance.Lookup(t.Path); ok {
			for k, v := range info.Meta() {
				meta[k] = v
			}
		}
	}
	receipt, err := b.Ledger.Record(ctx, ledger.Entry{
		Actor:     cfg.Actor,
		Action:    ledger.ActionRedact,
		SourceRef: ref,
		Before:    text,
		After:     out.Redacted,
		Meta:      meta,
	})
	if err != nil {
		res.Outcome, res.Err = metrics.OutcomeRedactedUnaudited, err
		log.Error("ledger write failed; output is not audited", "path", ref, logging.Err(err))
		return res
	}
	if b.Cache != nil {
		b.Cache.Put(ref, content)
	}
	res.Outcome, res.Receipt = metrics.OutcomeRecorded, receipt
	log.Debug("document recorded", "path", ref, "id", receipt.ID, "findings", res.Findings)
	return res
}

func outputPath(outDir string, t Target) string {
	if outDir == "" {
		return files.RedactedName(t.Path)
	}
	return filepath.Join(outDir, filepath.FromSlash(t.Rel))
}

func joinKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
