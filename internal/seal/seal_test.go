package seal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/ledger/pebblestore"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignAndVerify(t *testing.T) {
	key, err := LoadKey("0x" + testKey)
	require.NoError(t, err)
	head := ledger.Operation{ID: 3, ChainDigest: ledger.Digest([]byte("head"))}
	s, err := Sign(key, head, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", s.SignedAt)
	require.NoError(t, s.VerifySignature())

	path := filepath.Join(t.TempDir(), "seal.json")
	require.NoError(t, WriteFile(path, s))
	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	forged := s
	forged.HeadID = 4
	assert.True(t, errors.Is(forged.VerifySignature(), ErrMismatch))

	forged = s
	forged.Signature = "zz"
	assert.True(t, errors.Is(forged.VerifySignature(), ErrMismatch))
}

func TestGenerateKey(t *testing.T) {
	hexKey, addr, err := GenerateKey()
	require.NoError(t, err)
	key, err := LoadKey(hexKey)
	require.NoError(t, err)
	s, err := Sign(key, ledger.Operation{ID: 1, ChainDigest: "c"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, addr, s.Address)

	_, err = LoadKey("nothex")
	require.Error(t, err)
}

func TestCheckAgainstLedger(t *testing.T) {
	st, err := pebblestore.Open("ledger", pebblestore.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	l := ledger.New(st)
	defer l.Close()
	ctx := context.Background()

	_, err = l.Record(ctx, ledger.Entry{Before: "x", After: "*"})
	require.NoError(t, err)
	head, ok, err := l.Head(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	key, err := LoadKey(testKey)
	require.NoError(t, err)
	s, err := Sign(key, head, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Check(ctx, l))

	_, err = l.Record(ctx, ledger.Entry{Before: "y", After: "*"})
	require.NoError(t, err)
	require.NoError(t, s.Check(ctx, l), "appending after sealing keeps the sealed prefix")

	s2 := s
	s2.HeadID = 2
	require.Error(t, s2.Check(ctx, l))
}
