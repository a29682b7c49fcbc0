// Package core provides a small, stable facade over privaudit's internal
// detection, redaction and ledger packages for external integrations. It
// re-exports a narrow API surface so other programs can depend on a stable
// import path without reaching into internal packages.
//
// Example:
//
//	p, err := core.NewPipeline(core.PipelineConfig{ExtendedRules: true})
//	if err != nil { /* handle */ }
//	res, err := p.Process(ctx, text, core.Smart)
//	l, err := core.OpenLedger(core.LedgerConfig{})
//	defer l.Close()
//	_, err = l.Record(ctx, core.Entry{Actor: "svc", SourceRef: "doc-1", Before: text, After: res.Redacted})
package core
