package core

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

// MarshalFindings pretty-prints findings as JSON for humans or pipelines.
// A nil slice is written as [].
func MarshalFindings(w io.Writer, findings []Finding) error {
	if findings == nil {
		findings = []Finding{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}

// UnmarshalFindings decodes findings JSON, useful for ingestion tests.
func UnmarshalFindings(r io.Reader) ([]Finding, error) {
	var fs []Finding
	if err := json.NewDecoder(r).Decode(&fs); err != nil {
		return nil, errors.Wrap(err, "decode findings")
	}
	return fs, nil
}
