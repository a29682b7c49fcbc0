package ledger

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// memStore is an in-memory Store for tests. Fields are exposed to the
// package so tests can tamper with committed state.
type memStore struct {
	mu    sync.Mutex
	ops   []Operation
	snaps map[int64][]Snapshot
	// failAppend makes the next Append fail after build ran.
	failAppend error
	// undecodable makes Scan report that operation id as corrupt.
	undecodable int64
}

func newMemStore() *memStore {
	return &memStore{snaps: map[int64][]Snapshot{}}
}

func (m *memStore) Append(_ context.Context, build BuildFunc) (Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := EmptyChain
	var next int64 = 1
	if n := len(m.ops); n > 0 {
		prev = m.ops[n-1].ChainDigest
		next = m.ops[n-1].ID + 1
	}
	op, snaps, err := build(prev)
	if err != nil {
		return Operation{}, err
	}
	if m.failAppend != nil {
		err, m.failAppend = m.failAppend, nil
		return Operation{}, err
	}
	op, snaps = Finish(next, op, snaps)
	m.ops = append(m.ops, op)
	m.snaps[next] = snaps[:]
	return op, nil
}

func (m *memStore) Operation(_ context.Context, id int64) (Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops {
		if op.ID == id {
			return op, nil
		}
	}
	return Operation{}, errors.Wrapf(ErrNotFound, "id %d", id)
}

func (m *memStore) Snapshots(_ context.Context, id int64) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.snaps[id]...), nil
}

func (m *memStore) Scan(ctx context.Context, fn func(Operation) error) error {
	m.mu.Lock()
	ops := append([]Operation(nil), m.ops...)
	m.mu.Unlock()
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if op.ID == m.undecodable {
			return CorruptOperation(op.ID, errors.New("invalid character 'X'"))
		}
		if err := fn(op); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }
