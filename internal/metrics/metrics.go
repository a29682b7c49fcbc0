// Package metrics holds the Prometheus collectors for a privaudit run.
// Batch runs are short-lived, so collectors live in a private registry that
// is written to a node-exporter textfile at the end instead of served.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Document outcomes.
const (
	OutcomeRecorded          = "recorded"
	OutcomeRedactedUnaudited = "redacted_unaudited"
	OutcomeDryRun            = "dry_run"
	OutcomeSkipped           = "skipped"
	OutcomeFailed            = "failed"
)

// Metrics is a set of collectors bound to one registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	findings          *prometheus.CounterVec
	documents         *prometheus.CounterVec
	records           prometheus.Counter
	recordSeconds     prometheus.Histogram
	extensionFailures *prometheus.CounterVec
}

// New registers all collectors in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privaudit_findings_total",
			Help: "Findings detected, by kind.",
		}, []string{"kind"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privaudit_documents_total",
			Help: "Documents processed, by outcome.",
		}, []string{"outcome"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "privaudit_ledger_records_total",
			Help: "Operations appended to the ledger.",
		}),
		recordSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "privaudit_ledger_record_seconds",
			Help:    "Latency of ledger appends.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		extensionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privaudit_extension_failures_total",
			Help: "Extension calls that failed, timed out or panicked.",
		}, []string{"provider", "phase"}),
	}
	m.reg.MustRegister(m.findings, m.documents, m.records, m.recordSeconds, m.extensionFailures)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Findings adds per-kind counts.
func (m *Metrics) Findings(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.findings.WithLabelValues(kind).Add(float64(n))
	}
}

// Document counts one processed document.
func (m *Metrics) Document(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

// ObserveRecord implements ledger.Observer.
func (m *Metrics) ObserveRecord(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.recordSeconds.Observe(elapsed.Seconds())
	if err == nil {
		m.records.Inc()
	}
}

// ExtensionFailure counts a failed extension call. It matches the
// extension.Options OnFailure hook.
func (m *Metrics) ExtensionFailure(provider, phase string) {
	if m == nil {
		return
	}
	m.extensionFailures.WithLabelValues(provider, phase).Inc()
}

// WriteTextfile writes all metrics in the text exposition format. The file
// is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.reg), "write metrics to %s", path)
}
