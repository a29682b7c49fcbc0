package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/privaudit/privaudit/internal/types"
)

// FindingsTable prints findings in text as a table. Matched values are
// shortened so the table never shows a full identifier.
func FindingsTable(w io.Writer, text string, findings []types.Finding) error {
	if len(findings) == 0 {
		_, err := fmt.Fprintln(w, "No PII found ✅")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Line", "Col", "Span", "Preview")
	for _, f := range findings {
		line, col := Position(text, f.Start)
		if err := table.Append([]string{
			f.Kind,
			strconv.Itoa(line),
			strconv.Itoa(col),
			fmt.Sprintf("%d-%d", f.Start, f.End),
			maskValue(f.Text),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Findings: %d\n", len(findings))
	return err
}

// OperationsTable prints ledger entries as a table.
func OperationsTable(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Ledger is empty")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Timestamp", "Actor", "Action", "Source", "Chain")
	for _, e := range entries {
		if err := table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp,
			e.Actor,
			e.Action,
			e.SourceRef,
			shortDigest(e.ChainDigest),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// Position converts a byte offset into a 1-based line and rune column.
func Position(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	line = strings.Count(before, "\n") + 1
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		before = before[i+1:]
	}
	return line, utf8.RuneCountInString(before) + 1
}

func maskValue(s string) string {
	rs := []rune(s)
	if len(rs) <= 8 {
		return "********"
	}
	return string(rs[:2]) + "…" + string(rs[len(rs)-2:])
}

func shortDigest(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}
