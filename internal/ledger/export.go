package ledger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/report"
)

// ReportOptions controls ExportReport.
type ReportOptions struct {
	// Stats adds per-actor and per-action counts, total snapshot size and
	// the verification status.
	Stats  bool
	Format report.Format
	Title  string
}

// DefaultReportName is the file name used when dest is empty or a directory.
const DefaultReportName = "privaudit-report"

// ExportReport renders every operation to dest and returns the written path.
// The file appears atomically; the ledger is not modified.
func (l *Ledger) ExportReport(ctx context.Context, dest string, opts ReportOptions) (string, error) {
	if opts.Format == "" {
		opts.Format = report.HTML
	}
	doc, err := l.Document(ctx, opts.Stats)
	if err != nil {
		return "", err
	}
	doc.Title = opts.Title

	var buf bytes.Buffer
	if err := report.Write(&buf, doc, opts.Format); err != nil {
		return "", errors.Wrap(err, "render report")
	}

	path := dest
	if path == "" {
		path = DefaultReportName + opts.Format.Ext()
	} else if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultReportName+opts.Format.Ext())
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	l.log.Info("report written", "path", path, "operations", len(doc.Entries))
	return path, nil
}

// Document builds the report model for the whole ledger.
func (l *Ledger) Document(ctx context.Context, withStats bool) (report.Document, error) {
	doc := report.Document{GeneratedAt: l.now().UTC()}
	var stats *report.Stats
	if withStats {
		stats = &report.Stats{ByActor: map[string]int{}, ByAction: map[string]int{}}
	}
	err := l.store.Scan(ctx, func(op Operation) error {
		doc.Entries = append(doc.Entries, EntryOf(op))
		if stats == nil {
			return nil
		}
		stats.ByActor[op.Actor]++
		stats.ByAction[op.Action]++
		snaps, err := l.store.Snapshots(ctx, op.ID)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			stats.SnapshotBytes += int64(len(s.Payload))
		}
		return nil
	})
	if err != nil {
		return report.Document{}, errors.Wrap(err, "read ledger")
	}
	if stats != nil {
		v, err := l.Verify(ctx, VerifyOptions{})
		if err != nil {
			return report.Document{}, err
		}
		stats.Verification = report.Status{Intact: v.Intact, FirstBroken: v.FirstBroken, Reason: v.Reason, Checked: v.Checked}
		doc.Stats = stats
	}
	return doc, nil
}

// EntryOf converts an operation for display.
func EntryOf(op Operation) report.Entry {
	return report.Entry{
		ID:              op.ID,
		Timestamp:       FormatTimestamp(op.Timestamp),
		Actor:           op.Actor,
		Action:          op.Action,
		SourceRef:       op.SourceRef,
		BeforeDigest:    op.BeforeDigest,
		AfterDigest:     op.AfterDigest,
		PrevChainDigest: op.PrevChainDigest,
		ChainDigest:     op.ChainDigest,
		Meta:            op.Meta,
	}
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write report")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync report")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close report")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod report")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename report")
}
