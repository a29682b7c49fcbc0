// Package filestore keeps the ledger in an append-only JSON Lines file, one
// line per operation with both snapshots inline.
//
// A line becomes committed once its trailing newline is on disk. A final
// line without one is a torn write: readers skip it and Open truncates it.
// A committed line that does not decode is corruption. Readers report it as
// ledger.ErrCorruptOperation, and the store refuses to append or truncate
// until it is repaired by hand.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/nightlyone/lockfile"

	"github.com/privaudit/privaudit/internal/ledger"
)

type line struct {
	Op        ledger.Operation  `json:"op"`
	Snapshots []ledger.Snapshot `json:"snapshots"`
}

// Store is a ledger.Store backed by a single file.
type Store struct {
	path string
	lock lockfile.Lockfile

	mu     sync.Mutex
	f      *os.File
	size   int64
	lastID int64
	chain  string
	// damaged holds the first corrupt committed line found by Open.
	damaged error
}

var _ ledger.Store = (*Store)(nil)

// Open opens or creates the ledger file at path and takes the writer lock
// at path+".lock".
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "computing absolute path")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, errors.Wrapf(err, "create %s", filepath.Dir(abs))
	}
	lock, err := lockfile.New(abs + ".lock")
	if err != nil {
		return nil, errors.Wrap(err, "creating lock")
	}
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			err = errors.Mark(err, ledger.ErrLocked)
			if owner, ownerErr := lock.GetOwner(); ownerErr == nil {
				err = errors.WithHintf(err, "Ledger appears locked by process %d.", owner.Pid)
			}
		}
		return nil, errors.Wrapf(err, "locking ledger %q", path)
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.CombineErrors(errors.Wrap(err, "open ledger file"), lock.Unlock())
	}
	s := &Store{path: abs, lock: lock, f: f}
	if err := s.recover(); err != nil {
		return nil, errors.CombineErrors(err, s.Close())
	}
	return s, nil
}

// recover finds the committed prefix of the file, drops a torn tail and
// loads the head. A corrupt committed line leaves the file untouched.
func (s *Store) recover() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek ledger")
	}
	var committed int64
	br := bufio.NewReaderSize(s.f, 64<<10)
	for {
		raw, err := br.ReadBytes('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read ledger")
		}
		committed += int64(len(raw))
		if s.damaged != nil {
			continue
		}
		l, err := decodeLine(raw, s.lastID)
		if err != nil {
			s.damaged = err
			continue
		}
		s.lastID, s.chain = l.Op.ID, l.Op.ChainDigest
	}
	s.size = committed
	fi, err := s.f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat ledger")
	}
	if fi.Size() > committed && s.damaged == nil {
		if err := s.f.Truncate(committed); err != nil {
			return errors.Wrap(err, "truncate torn tail")
		}
		if err := s.f.Sync(); err != nil {
			return errors.Wrap(err, "sync ledger")
		}
	}
	return nil
}

// decodeLine parses one committed line. prevID is the id of the line before
// it and locates the damage when the line does not decode.
func decodeLine(raw []byte, prevID int64) (line, error) {
	var l line
	if err := json.Unmarshal(bytes.TrimSpace(raw), &l); err != nil {
		return line{}, ledger.CorruptOperation(prevID+1, err)
	}
	return l, nil
}

// readLines calls fn for each committed line. A final fragment without a
// newline is ignored; a committed line that does not decode stops the read
// with a ledger.ErrCorruptOperation error.
func readLines(r io.Reader, fn func(l line) error) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var prevID int64
	for {
		raw, err := br.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read ledger")
		}
		l, err := decodeLine(raw, prevID)
		if err != nil {
			return err
		}
		prevID = l.Op.ID
		if err := fn(l); err != nil {
			return err
		}
	}
}

// Append implements ledger.Store.
func (s *Store) Append(ctx context.Context, build ledger.BuildFunc) (ledger.Operation, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Operation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.damaged != nil {
		return ledger.Operation{}, errors.WithHint(errors.Wrap(s.damaged, "ledger file is damaged"),
			"run privaudit verify to locate the damaged entry; nothing is appended until it is repaired")
	}

	op, snaps, err := build(s.chain)
	if err != nil {
		return ledger.Operation{}, err
	}
	op, snaps = ledger.Finish(s.lastID+1, op, snaps)
	buf, err := json.Marshal(line{Op: op, Snapshots: snaps[:]})
	if err != nil {
		return ledger.Operation{}, errors.Wrap(err, "encode operation")
	}
	buf = append(buf, '\n')

	if _, err := s.f.WriteAt(buf, s.size); err != nil {
		return ledger.Operation{}, errors.CombineErrors(errors.Wrap(err, "write operation"), s.f.Truncate(s.size))
	}
	if err := s.f.Sync(); err != nil {
		return ledger.Operation{}, errors.CombineErrors(errors.Wrap(err, "sync operation"), s.f.Truncate(s.size))
	}
	s.size += int64(len(buf))
	s.lastID, s.chain = op.ID, op.ChainDigest
	return op, nil
}

// view returns a reader over the committed prefix of the file.
func (s *Store) view() (io.Reader, func() error, error) {
	s.mu.Lock()
	size := s.size
	s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open ledger file")
	}
	return io.LimitReader(f, size), f.Close, nil
}

func (s *Store) find(ctx context.Context, id int64) (line, error) {
	var found *line
	err := s.scanLines(ctx, func(l line) error {
		if l.Op.ID == id {
			found = &l
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return line{}, err
	}
	if found == nil {
		return line{}, errors.Wrapf(ledger.ErrNotFound, "operation %d", id)
	}
	return *found, nil
}

var errFound = errors.New("found")

func (s *Store) scanLines(ctx context.Context, fn func(line) error) (err error) {
	r, closeFn, err := s.view()
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, closeFn()) }()
	return readLines(r, func(l line) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(l)
	})
}

// Operation implements ledger.Store.
func (s *Store) Operation(ctx context.Context, id int64) (ledger.Operation, error) {
	l, err := s.find(ctx, id)
	return l.Op, err
}

// Snapshots implements ledger.Store.
func (s *Store) Snapshots(ctx context.Context, id int64) ([]ledger.Snapshot, error) {
	l, err := s.find(ctx, id)
	return l.Snapshots, err
}

// Scan implements ledger.Store.
func (s *Store) Scan(ctx context.Context, fn func(ledger.Operation) error) error {
	return s.scanLines(ctx, func(l line) error { return fn(l.Op) })
}

// Close releases the file and the writer lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.f != nil {
		err = s.f.Close()
		s.f = nil
	}
	return errors.CombineErrors(err, s.lock.Unlock())
}
