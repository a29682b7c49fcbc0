package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/privaudit/privaudit/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt    `json:"artifactLocation"`
	Region           sarifRegion `json:"region"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	ByteOffset  int `json:"byteOffset"`
	ByteLength  int `json:"byteLength"`
}

// Source is one scanned document with its findings.
type Source struct {
	Path     string
	Text     string
	Findings []types.Finding
}

// WriteSARIF writes findings as SARIF 2.1.0. Matched values are not included.
func WriteSARIF(w io.Writer, version string, sources []Source) error {
	if version == "" {
		version = time.Now().Format("2006.01.02")
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "privaudit", Version: version}},
		Results: []sarifResult{},
	}
	for _, src := range sources {
		for _, f := range src.Findings {
			line, col := Position(src.Text, f.Start)
			run.Results = append(run.Results, sarifResult{
				RuleID:  f.Kind,
				Level:   "warning",
				Message: sarifMessage{Text: f.Kind + " detected"},
				Locations: []sarifLoc{{
					PhysicalLocation: sarifPhys{
						ArtifactLocation: sarifArt{URI: src.Path},
						Region:           sarifRegion{StartLine: line, StartColumn: col, ByteOffset: f.Start, ByteLength: f.Len()},
					},
				}},
			})
		}
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
