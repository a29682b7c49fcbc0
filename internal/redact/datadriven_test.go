package redact

import (
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/datadriven"

	"github.com/privaudit/privaudit/internal/detectors"
)

func TestRedactDataDriven(t *testing.T) {
	reg := detectors.NewBase()
	datadriven.RunTest(t, "testdata/redact", func(t *testing.T, d *datadriven.TestData) string {
		var strategy string
		d.ScanArgs(t, "strategy", &strategy)
		s, err := ParseStrategy(strategy)
		if err != nil {
			t.Fatal(err)
		}
		opts := Options{}
		if d.HasArg("mask") {
			var m string
			d.ScanArgs(t, "mask", &m)
			opts.MaskChar, _ = utf8.DecodeRuneInString(m)
		}
		out, err := New(opts).Redact(d.Input, reg.Detect(d.Input), s)
		if err != nil {
			t.Fatal(err)
		}
		switch d.Cmd {
		case "redact":
			return out + "\n"
		case "diff":
			if diff := Diff(d.Input, out, DiffOptions{}); diff != "" {
				return diff
			}
			return "<no changes>\n"
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
