package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

func writeMarkdown(w io.Writer, doc Document) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "Generated %s. %d operation(s).\n\n", doc.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"), len(doc.Entries))

	if s := doc.Stats; s != nil {
		b.WriteString("## Summary\n\n")
		if s.Verification.Intact {
			fmt.Fprintf(&b, "Chain: intact (%d checked)\n\n", s.Verification.Checked)
		} else {
			fmt.Fprintf(&b, "Chain: **broken** at operation %d: %s\n\n", s.Verification.FirstBroken, cell(s.Verification.Reason))
		}
		fmt.Fprintf(&b, "Compressed snapshots: %s\n\n", humanize.Bytes(uint64(s.SnapshotBytes)))
		for _, t := range []struct {
			title string
			m     map[string]int
		}{{"Actor", s.ByActor}, {"Action", s.ByAction}} {
			fmt.Fprintf(&b, "| %s | Operations |\n|---|---|\n", t.title)
			for _, c := range sortedCounts(t.m) {
				fmt.Fprintf(&b, "| %s | %d |\n", cell(c.Key), c.N)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Operations\n\n")
	b.WriteString("| ID | Timestamp | Actor | Action | Source | Before | After | Prev chain | Chain | Meta |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, e := range doc.Entries {
		meta := make([]string, 0, len(e.Meta))
		for _, k := range sortedKeys(e.Meta) {
			meta = append(meta, k+"="+e.Meta[k])
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | `%s` | `%s` | `%s` | `%s` | %s |\n",
			e.ID, e.Timestamp, cell(e.Actor), cell(e.Action), cell(e.SourceRef),
			e.BeforeDigest, e.AfterDigest, e.PrevChainDigest, e.ChainDigest, cell(strings.Join(meta, " ")))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
