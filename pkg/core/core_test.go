package core

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/ledger"
)

func TestNewPipeline_Defaults(t *testing.T) {
	p, err := NewPipeline(PipelineConfig{})
	require.NoError(t, err)
	res, err := p.Process(context.Background(), "a@b.com 13912345678", Smart)
	require.NoError(t, err)
	assert.Equal(t, "*@b.com 139****5678", res.Redacted)
	assert.Nil(t, p.Extensions)
}

func TestNewPipeline_MaskAndStyles(t *testing.T) {
	p, err := NewPipeline(PipelineConfig{MaskChar: "#", MaskStyles: map[string]string{"phone_cn": "middle"}, Diff: true})
	require.NoError(t, err)
	res, err := p.Process(context.Background(), "13912345678", Smart)
	require.NoError(t, err)
	assert.Equal(t, "139######78", res.Redacted)
	assert.NotEmpty(t, res.Diff)
}

func TestNewPipeline_BadOptions(t *testing.T) {
	for _, cfg := range []PipelineConfig{
		{Policy: "lenient"},
		{MaskChar: "**"},
		{MaskStyles: map[string]string{"email": "sideways"}},
	} {
		_, err := NewPipeline(cfg)
		require.Error(t, err, "%+v", cfg)
		assert.NotEmpty(t, errors.GetAllHints(err))
	}
}

func TestProviders(t *testing.T) {
	ps, err := Providers("address_cn, ner", "http://localhost:8001", 0)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "address_cn", ps[0].Name())
	assert.Equal(t, "ner", ps[1].Name())

	_, err = Providers("ner", "", 0)
	require.Error(t, err)
	_, err = Providers("crystal_ball", "", 0)
	require.Error(t, err)

	ps, err = Providers("", "", 0)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestOpenLedger_Backends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendPebble, BackendFile} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "l")
			l, err := OpenLedger(LedgerConfig{Backend: backend, Path: path, Codec: "gzip"})
			require.NoError(t, err)
			r, err := l.Record(ctx, Entry{Actor: "svc", SourceRef: "doc", Before: "a@b.com", After: "*@b.com"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), r.ID)
			require.NoError(t, l.Close())

			l, err = OpenLedger(LedgerConfig{Backend: backend, Path: path})
			require.NoError(t, err)
			defer l.Close()
			rec, err := l.Read(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "a@b.com", rec.Before)
			assert.Equal(t, "*@b.com", rec.After)

			v, err := l.Verify(ctx, ledger.VerifyOptions{Deep: true})
			require.NoError(t, err)
			assert.True(t, v.Intact)
		})
	}
}

func TestOpenLedger_Errors(t *testing.T) {
	_, err := OpenLedger(LedgerConfig{Backend: "tape"})
	require.Error(t, err)
	_, err = OpenLedger(LedgerConfig{Backend: BackendPostgres})
	require.Error(t, err)
	_, err = OpenLedger(LedgerConfig{Codec: "lz4"})
	require.Error(t, err)
}

func TestStateDir(t *testing.T) {
	assert.Equal(t, DefaultDir, LedgerConfig{}.StateDir())
	assert.Equal(t, "/x", LedgerConfig{Backend: BackendPebble, Path: "/x/ledger"}.StateDir())
	assert.Equal(t, DefaultDir, LedgerConfig{Backend: BackendFile}.StateDir())
	assert.Equal(t, "/x", LedgerConfig{Backend: BackendFile, Path: "/x/l.jsonl"}.StateDir())
	assert.Equal(t, DefaultDir, LedgerConfig{Backend: BackendPostgres}.StateDir())
}

func TestFindingsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalFindings(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())

	in := []Finding{{Kind: "email", Start: 0, End: 7, Text: "a@b.com"}}
	buf.Reset()
	require.NoError(t, MarshalFindings(&buf, in))
	out, err := UnmarshalFindings(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = UnmarshalFindings(bytes.NewBufferString("{"))
	require.Error(t, err)
}
