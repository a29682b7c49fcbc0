// Package report renders ledger exports and finding listings.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Format is an export document format.
type Format string

const (
	HTML     Format = "html"
	JSON     Format = "json"
	Markdown Format = "markdown"
)

// ParseFormat validates a format name; empty selects HTML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return HTML, nil
	case HTML, JSON, Markdown:
		return f, nil
	case "md":
		return Markdown, nil
	}
	return "", errors.WithHint(errors.Newf("unknown report format %q", s), "use html, json or markdown")
}

// Ext is the file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case JSON:
		return ".json"
	case Markdown:
		return ".md"
	}
	return ".html"
}

// Entry is one ledger operation as shown in a report.
type Entry struct {
	ID              int64             `json:"id"`
	Timestamp       string            `json:"timestamp"`
	Actor           string            `json:"actor"`
	Action          string            `json:"action"`
	SourceRef       string            `json:"source_ref"`
	BeforeDigest    string            `json:"before_digest"`
	AfterDigest     string            `json:"after_digest"`
	PrevChainDigest string            `json:"prev_chain_digest"`
	ChainDigest     string            `json:"chain_digest"`
	Meta            map[string]string `json:"meta,omitempty"`
}

// Status is the chain verification outcome shown in the stats section.
type Status struct {
	Intact      bool   `json:"intact"`
	FirstBroken int64  `json:"first_broken,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Checked     int    `json:"checked"`
}

// Stats summarizes a ledger.
type Stats struct {
	ByActor       map[string]int `json:"by_actor"`
	ByAction      map[string]int `json:"by_action"`
	SnapshotBytes int64          `json:"snapshot_bytes"`
	Verification  Status         `json:"verification"`
}

// Document is a complete export.
type Document struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"operations"`
	Stats       *Stats    `json:"stats,omitempty"`
}

// Write renders doc to w.
func Write(w io.Writer, doc Document, f Format) error {
	if doc.Title == "" {
		doc.Title = "privaudit ledger report"
	}
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case Markdown:
		return writeMarkdown(w, doc)
	case HTML, "":
		return writeHTML(w, doc)
	}
	return errors.Newf("unknown report format %q", f)
}

// Count is one row of a tally.
type Count struct {
	Key string
	N   int
}

// sortedCounts orders a tally by count descending, then key.
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
