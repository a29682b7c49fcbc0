package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/privaudit/privaudit/internal/types"
)

func TestWriteSARIF(t *testing.T) {
	src := Source{
		Path: "notes.txt",
		Text: "one\ntwo a@b.com",
		Findings: []types.Finding{
			{Kind: "email", Start: 8, End: 15, Text: "a@b.com"},
		},
	}
	var buf bytes.Buffer
	if err := WriteSARIF(&buf, "test", []Source{src}); err != nil {
		t.Fatalf("WriteSARIF error: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("a@b.com")) {
		t.Fatalf("matched value leaked into SARIF: %s", buf.String())
	}
	var got sarif
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Version != "2.1.0" || len(got.Runs) != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}
	res := got.Runs[0].Results
	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}
	r := res[0]
	if r.RuleID != "email" || r.Level != "warning" {
		t.Fatalf("unexpected result: %+v", r)
	}
	reg := r.Locations[0].PhysicalLocation.Region
	if reg.StartLine != 2 || reg.StartColumn != 5 || reg.ByteOffset != 8 || reg.ByteLength != 7 {
		t.Fatalf("unexpected region: %+v", reg)
	}
	if r.Locations[0].PhysicalLocation.ArtifactLocation.URI != "notes.txt" {
		t.Fatalf("unexpected uri")
	}
}

func TestWriteSARIF_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSARIF(&buf, "", nil); err != nil {
		t.Fatalf("WriteSARIF error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"results": []`)) {
		t.Fatalf("expected empty results array: %s", buf.String())
	}
}
