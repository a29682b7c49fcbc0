package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/types"
)

func sampleDoc() Document {
	return Document{
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Entries: []Entry{
			{ID: 1, Timestamp: "2024-05-01T11:00:00.000000Z", Actor: "alice", Action: "redact", SourceRef: "a.txt",
				BeforeDigest: "b1", AfterDigest: "a1", ChainDigest: "c1", Meta: map[string]string{"z": "1", "a": "<x>"}},
			{ID: 2, Timestamp: "2024-05-01T11:05:00.000000Z", Actor: "bob", Action: "redact", SourceRef: "b|c.txt",
				BeforeDigest: "b2", AfterDigest: "a2", PrevChainDigest: "c1", ChainDigest: "c2"},
		},
		Stats: &Stats{
			ByActor:       map[string]int{"alice": 1, "bob": 1},
			ByAction:      map[string]int{"redact": 2},
			SnapshotBytes: 2048,
			Verification:  Status{Intact: true, Checked: 2},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, HTML, f)
	f, err = ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, Markdown, f)
	assert.Equal(t, ".md", f.Ext())
	_, err = ParseFormat("pdf")
	require.Error(t, err)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDoc(), HTML))
	out := buf.String()
	if !strings.Contains(out, "<title>privaudit ledger report</title>") {
		t.Fatalf("missing title: %q", out)
	}
	for _, want := range []string{"c1", "c2", "b.txt", "2.0 kB", "intact", "a=&lt;x&gt;<br>z=1"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "http://")
}

func TestWriteHTML_Broken(t *testing.T) {
	doc := sampleDoc()
	doc.Stats.Verification = Status{FirstBroken: 2, Reason: "chain_digest mismatch", Checked: 2}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, HTML))
	assert.Contains(t, buf.String(), "broken at operation 2")
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDoc(), Markdown))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# privaudit ledger report\n"))
	assert.Contains(t, out, `b\|c.txt`)
	assert.Contains(t, out, "| alice | 1 |")
	assert.Contains(t, out, "| redact | 2 |")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDoc(), JSON))
	var back Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back.Entries, 2)
	assert.Equal(t, "c1", back.Entries[1].PrevChainDigest)
	assert.Equal(t, int64(2048), back.Stats.SnapshotBytes)
}

func TestWithoutStats(t *testing.T) {
	doc := sampleDoc()
	doc.Stats = nil
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, HTML))
	assert.NotContains(t, buf.String(), "Summary")
}

func TestFindingsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FindingsTable(&buf, "x", nil))
	assert.Contains(t, buf.String(), "No PII found")

	text := "hi\n名 a@b.com 13912345678"
	fs := []types.Finding{
		{Kind: "email", Start: 7, End: 14, Text: "a@b.com"},
		{Kind: "phone_cn", Start: 15, End: 26, Text: "13912345678"},
	}
	buf.Reset()
	require.NoError(t, FindingsTable(&buf, text, fs))
	out := buf.String()
	assert.Contains(t, out, "phone_cn")
	assert.Contains(t, out, "13…78")
	assert.NotContains(t, out, "13912345678")
	assert.NotContains(t, out, "a@b.com")
	assert.Contains(t, out, "Findings: 2")
}

func TestPosition(t *testing.T) {
	line, col := Position("ab\n名字x", 9)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
	line, col = Position("abc", 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)
}

func TestOperationsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OperationsTable(&buf, sampleDoc().Entries))
	assert.Contains(t, buf.String(), "alice")
	buf.Reset()
	require.NoError(t, OperationsTable(&buf, nil))
	assert.Contains(t, buf.String(), "Ledger is empty")
}
