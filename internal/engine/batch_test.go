package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/cache"
	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/ledger/pebblestore"
	"github.com/privaudit/privaudit/internal/metrics"
	"github.com/privaudit/privaudit/internal/redact"
)

func memLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	st, err := pebblestore.Open("ledger", pebblestore.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	l := ledger.New(st)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func batchTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":     "contact a@b.com\n",
		"sub/b.txt": "no personal data\n",
		"c.dat":     "x\x00y",
	})
	return dir
}

func outcomes(sum Summary) map[string]string {
	out := map[string]string{}
	for _, d := range sum.Documents {
		out[filepath.Base(d.Path)] = d.Outcome
	}
	return out
}

func TestBatch_RecordsDocuments(t *testing.T) {
	dir := batchTree(t)
	l := memLedger(t)
	m := metrics.New()
	var seen []string
	b := &Batch{
		Pipeline:   newPipeline(),
		Ledger:     l,
		Metrics:    m,
		OnDocument: func(r DocResult) { seen = append(seen, r.Path) },
	}
	sum, err := b.Run(context.Background(), BatchConfig{
		Paths:    []string{dir},
		Threads:  2,
		Strategy: redact.Label,
		Actor:    "tester",
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	assert.Equal(t, map[string]string{
		"a.txt": metrics.OutcomeRecorded,
		"b.txt": metrics.OutcomeRecorded,
		"c.dat": metrics.OutcomeSkipped,
	}, outcomes(sum))
	assert.Equal(t, 2, sum.Counts[metrics.OutcomeRecorded])
	assert.Zero(t, sum.Unaudited())

	out, err := os.ReadFile(filepath.Join(dir, "a.redacted.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contact [EMAIL]\n", string(out))
	_, err = os.Stat(filepath.Join(dir, "sub", "b.redacted.txt"))
	require.NoError(t, err)

	v, err := l.Verify(context.Background(), ledger.VerifyOptions{Deep: true})
	require.NoError(t, err)
	assert.True(t, v.Intact)
	assert.Equal(t, 2, v.Checked)

	ops, err := l.List(context.Background(), ledger.ListOptions{Actor: "tester"})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, sum.RunID, op.Meta[MetaRunID])
		assert.Equal(t, "label", op.Meta[MetaStrategy])
		if strings.HasSuffix(op.SourceRef, "/a.txt") {
			assert.Equal(t, "1", op.Meta[MetaFindings])
			assert.Equal(t, "email", op.Meta[MetaKinds])
		}
	}

	prom := filepath.Join(t.TempDir(), "privaudit.prom")
	require.NoError(t, m.WriteTextfile(prom))
	text, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(text), `privaudit_documents_total{outcome="recorded"} 2`)
	assert.Contains(t, string(text), `privaudit_findings_total{kind="email"} 1`)
}

func TestBatch_DryRun(t *testing.T) {
	dir := batchTree(t)
	b := &Batch{Pipeline: newPipeline()}
	sum, err := b.Run(context.Background(), BatchConfig{Paths: []string{filepath.Join(dir, "a.txt")}, Strategy: redact.Full, DryRun: true})
	require.NoError(t, err)
	require.Len(t, sum.Documents, 1)
	d := sum.Documents[0]
	assert.Equal(t, metrics.OutcomeDryRun, d.Outcome)
	assert.Equal(t, "contact *******\n", d.Redacted)
	assert.Equal(t, 1, d.Findings)
	_, err = os.Stat(filepath.Join(dir, "a.redacted.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatch_RequiresLedger(t *testing.T) {
	_, err := (&Batch{Pipeline: newPipeline()}).Run(context.Background(), BatchConfig{Paths: []string{t.TempDir()}})
	require.Error(t, err)
}

func TestBatch_OutDirMirrorsTree(t *testing.T) {
	dir := batchTree(t)
	out := filepath.Join(t.TempDir(), "out")
	b := &Batch{Pipeline: newPipeline(), Ledger: memLedger(t)}
	_, err := b.Run(context.Background(), BatchConfig{Paths: []string{dir}, Strategy: redact.Smart, OutDir: out})
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "contact *@b.com\n", string(got))
	_, err = os.Stat(filepath.Join(out, "sub", "b.txt"))
	require.NoError(t, err)
}

func TestBatch_Incremental(t *testing.T) {
	dir := batchTree(t)
	l := memLedger(t)
	db, err := cache.Load(filepath.Join(t.TempDir(), cache.FileName))
	require.NoError(t, err)
	b := &Batch{Pipeline: newPipeline(), Ledger: l, Cache: db}
	cfg := BatchConfig{Paths: []string{dir}, Strategy: redact.Full}

	_, err = b.Run(context.Background(), cfg)
	require.NoError(t, err)
	sum, err := b.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Counts[metrics.OutcomeSkipped])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("now 13912345678\n"), 0o644))
	sum, err = b.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeRecorded, outcomes(sum)["a.txt"])

	ops, err := l.List(context.Background(), ledger.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, ops, 3)
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, ledger.Entry) (ledger.Receipt, error) {
	return ledger.Receipt{}, errors.New("disk full")
}

func TestBatch_LedgerFailureIsUnaudited(t *testing.T) {
	dir := batchTree(t)
	b := &Batch{Pipeline: newPipeline(), Ledger: failingRecorder{}}
	sum, err := b.Run(context.Background(), BatchConfig{Paths: []string{filepath.Join(dir, "a.txt")}, Strategy: redact.Full})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Unaudited())
	assert.ErrorContains(t, sum.Documents[0].Err, "disk full")
	// the output stays; the summary tells the caller it is not audited
	_, err = os.Stat(filepath.Join(dir, "a.redacted.txt"))
	require.NoError(t, err)
}

func TestBatch_InvalidUTF8Fails(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"bad.txt": "a\xffb"})
	b := &Batch{Pipeline: newPipeline(), Ledger: memLedger(t)}
	sum, err := b.Run(context.Background(), BatchConfig{Paths: []string{dir}, Strategy: redact.Full})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed())
}

type countingRecorder struct {
	mu sync.Mutex
	n  int
	l  *ledger.Ledger
}

func (c *countingRecorder) Record(ctx context.Context, e ledger.Entry) (ledger.Receipt, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return c.l.Record(ctx, e)
}

func TestBatch_Cancelled(t *testing.T) {
	dir := batchTree(t)
	rec := &countingRecorder{l: memLedger(t)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Batch{Pipeline: newPipeline(), Ledger: rec}).Run(ctx, BatchConfig{Paths: []string{dir}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, rec.n)
}
