package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Findings(map[string]int{"email": 2, "phone_cn": 1})
	m.Findings(map[string]int{"email": 1})
	m.Document(OutcomeRecorded)
	m.Document(OutcomeRecorded)
	m.Document(OutcomeRedactedUnaudited)
	m.ObserveRecord(time.Millisecond, nil)
	m.ObserveRecord(time.Millisecond, errors.New("boom"))
	m.ExtensionFailure("ner", "detect")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("email")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues(OutcomeRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extensionFailures.WithLabelValues("ner", "detect")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.recordSeconds))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Findings(map[string]int{"email": 1})
	m.Document(OutcomeFailed)
	m.ObserveRecord(time.Second, nil)
	m.ExtensionFailure("x", "y")
	require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Document(OutcomeDryRun)
	path := filepath.Join(t.TempDir(), "privaudit.prom")
	require.NoError(t, m.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	if !strings.Contains(string(b), `privaudit_documents_total{outcome="dry_run"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", b)
	}
}
