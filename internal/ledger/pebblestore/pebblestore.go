// Package pebblestore keeps the ledger in an embedded Pebble database.
//
// Key layout:
//
//	o/<id>          operation JSON
//	s/<id>/<role>   snapshot JSON
//	m/head          id and chain digest of the last operation
//
// Ids are 8-byte big-endian so keys sort in id order. An append writes the
// operation, both snapshots and the head in one synced batch.
package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/privaudit/privaudit/internal/ledger"
)

var (
	opPrefix   = []byte("o/")
	snapPrefix = []byte("s/")
	headKey    = []byte("m/head")
)

type head struct {
	ID    int64  `json:"id"`
	Chain string `json:"chain"`
}

// Options configures Open.
type Options struct {
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

// Store is a ledger.Store backed by Pebble.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

var _ ledger.Store = (*Store)(nil)

// Open opens or creates the database in dir. Pebble's directory lock keeps
// other processes out; a held lock is reported as ledger.ErrLocked.
func Open(dir string, opts Options) (*Store, error) {
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return nil, errors.WithHint(errors.Mark(errors.Wrapf(err, "open ledger %s", dir), ledger.ErrLocked),
				"another privaudit process is using this ledger")
		}
		return nil, errors.Wrapf(err, "open ledger %s", dir)
	}
	return &Store{db: db}, nil
}

func opKey(id int64) []byte {
	k := make([]byte, 0, len(opPrefix)+8)
	k = append(k, opPrefix...)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

// keyID recovers the id from an operation key, or 0 for a malformed key.
func keyID(k []byte) int64 {
	if len(k) != len(opPrefix)+8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(k[len(opPrefix):]))
}

func snapKeyPrefix(id int64) []byte {
	k := make([]byte, 0, len(snapPrefix)+9)
	k = append(k, snapPrefix...)
	k = binary.BigEndian.AppendUint64(k, uint64(id))
	return append(k, '/')
}

func snapKey(id int64, role ledger.Role) []byte {
	return append(snapKeyPrefix(id), role...)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// Append implements ledger.Store.
func (s *Store) Append(ctx context.Context, build ledger.BuildFunc) (ledger.Operation, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Operation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var h head
	if err := getJSON(s.db, headKey, &h); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return ledger.Operation{}, err
	}
	op, snaps, err := build(h.Chain)
	if err != nil {
		return ledger.Operation{}, err
	}
	op, snaps = ledger.Finish(h.ID+1, op, snaps)

	b := s.db.NewBatch()
	defer b.Close()
	if err := setJSON(b, opKey(op.ID), op); err != nil {
		return ledger.Operation{}, err
	}
	for _, sn := range snaps {
		if err := setJSON(b, snapKey(op.ID, sn.Role), sn); err != nil {
			return ledger.Operation{}, err
		}
	}
	if err := setJSON(b, headKey, head{ID: op.ID, Chain: op.ChainDigest}); err != nil {
		return ledger.Operation{}, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return ledger.Operation{}, errors.Wrap(err, "commit operation")
	}
	return op, nil
}

// Operation implements ledger.Store.
func (s *Store) Operation(_ context.Context, id int64) (ledger.Operation, error) {
	var op ledger.Operation
	if err := getJSON(s.db, opKey(id), &op); err != nil {
		if errors.Is(err, errDecode) {
			return ledger.Operation{}, ledger.CorruptOperation(id, err)
		}
		return ledger.Operation{}, errors.Wrapf(err, "operation %d", id)
	}
	return op, nil
}

// Snapshots implements ledger.Store.
func (s *Store) Snapshots(_ context.Context, id int64) ([]ledger.Snapshot, error) {
	prefix := snapKeyPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, errors.Wrap(err, "open iterator")
	}
	defer func() { _ = iter.Close() }()
	var out []ledger.Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		var sn ledger.Snapshot
		if err := json.Unmarshal(iter.Value(), &sn); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "decode snapshot %q", iter.Key()), ledger.ErrCorruptSnapshot)
		}
		out = append(out, sn)
	}
	return out, iter.Error()
}

// Scan implements ledger.Store over a point-in-time snapshot.
func (s *Store) Scan(ctx context.Context, fn func(ledger.Operation) error) error {
	snap := s.db.NewSnapshot()
	defer func() { _ = snap.Close() }()
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: opPrefix, UpperBound: prefixEnd(opPrefix)})
	if err != nil {
		return errors.Wrap(err, "open iterator")
	}
	defer func() { _ = iter.Close() }()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var op ledger.Operation
		if err := json.Unmarshal(iter.Value(), &op); err != nil {
			return ledger.CorruptOperation(keyID(iter.Key()), err)
		}
		if err := fn(op); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func setJSON(b *pebble.Batch, key []byte, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return b.Set(key, buf, nil)
}

func getJSON(db *pebble.DB, key []byte, v any) error {
	val, closer, err := db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", key)
	}
	defer func() { _ = closer.Close() }()
	if err := json.Unmarshal(val, v); err != nil {
		return errors.Mark(errors.Wrapf(err, "decode %s", key), errDecode)
	}
	return nil
}

var errDecode = errors.New("value does not decode")
