package report

import (
	_ "embed"
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
)

//go:embed templates/report.html.tmpl
var htmlSource string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"bytes":  func(n int64) string { return humanize.Bytes(uint64(n)) },
	"counts": sortedCounts,
	"keys":   sortedKeys,
	"when":   func(d Document) string { return d.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST") },
}).Parse(htmlSource))

func writeHTML(w io.Writer, doc Document) error {
	return htmlTemplate.Execute(w, doc)
}
