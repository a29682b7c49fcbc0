package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/privaudit/privaudit/internal/types"
)

// Observer receives timing for each Record call.
type Observer interface {
	ObserveRecord(elapsed time.Duration, err error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCodec selects the snapshot compression for new operations.
func WithCodec(c Codec) Option { return func(l *Ledger) { l.codec = c } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithObserver reports Record latency and outcome.
func WithObserver(o Observer) Option { return func(l *Ledger) { l.obs = o } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *Ledger) { l.log = log } }

// Ledger is the single-writer front of a Store. All methods are safe for
// concurrent use; appends are serialized.
type Ledger struct {
	store Store
	codec Codec
	now   func() time.Time
	obs   Observer
	log   *slog.Logger

	mu sync.Mutex
}

// New wraps store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, codec: DefaultCodec, now: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.With("component", "ledger")
	return l
}

// Close closes the underlying store.
func (l *Ledger) Close() error { return l.store.Close() }

// Entry is the caller-supplied content of one operation.
type Entry struct {
	Actor     string
	Action    string
	SourceRef string
	Before    string
	After     string
	Meta      map[string]string
}

// Receipt identifies a committed operation.
type Receipt struct {
	ID          int64  `json:"id"`
	ChainDigest string `json:"chain_digest"`
}

// Record appends one operation with its before and after snapshots. On
// error nothing has been persisted.
func (l *Ledger) Record(ctx context.Context, e Entry) (_ Receipt, err error) {
	start := time.Now()
	defer func() {
		if l.obs != nil {
			l.obs.ObserveRecord(time.Since(start), err)
		}
	}()

	if err := types.CheckText(e.Before); err != nil {
		return Receipt{}, errors.Wrap(err, "before text")
	}
	if err := types.CheckText(e.After); err != nil {
		return Receipt{}, errors.Wrap(err, "after text")
	}
	if e.Action == "" {
		e.Action = ActionRedact
	}

	snaps, err := l.snapshots(e.Before, e.After)
	if err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	op, err := l.store.Append(ctx, func(prev string) (Operation, [2]Snapshot, error) {
		op := Operation{
			Timestamp:       l.now().UTC().Truncate(time.Microsecond),
			Actor:           e.Actor,
			Action:          e.Action,
			SourceRef:       e.SourceRef,
			BeforeDigest:    snaps[0].Digest,
			AfterDigest:     snaps[1].Digest,
			PrevChainDigest: prev,
			Meta:            cloneMeta(e.Meta),
		}
		chain, err := ChainDigest(prev, op)
		if err != nil {
			return Operation{}, snaps, err
		}
		op.ChainDigest = chain
		return op, snaps, nil
	})
	if err != nil {
		return Receipt{}, errors.Wrap(err, "record operation")
	}
	l.log.Debug("recorded operation", "id", op.ID, "action", op.Action)
	return Receipt{ID: op.ID, ChainDigest: op.ChainDigest}, nil
}

func (l *Ledger) snapshots(before, after string) ([2]Snapshot, error) {
	var snaps [2]Snapshot
	for i, side := range []struct {
		role Role
		text string
	}{{RoleBefore, before}, {RoleAfter, after}} {
		payload, err := Compress(l.codec, []byte(side.text))
		if err != nil {
			return snaps, errors.Wrapf(err, "compress %s snapshot", side.role)
		}
		snaps[i] = Snapshot{Role: side.role, Codec: l.codec, Digest: Digest([]byte(side.text)), Payload: payload}
	}
	return snaps, nil
}

// Record is an operation with its decompressed snapshots.
type Record struct {
	Operation
	Before string `json:"before"`
	After  string `json:"after"`
}

// Read returns operation id with both texts restored. It returns
// ErrNotFound for unknown ids and ErrCorruptSnapshot when a snapshot does
// not restore to its recorded digest.
func (l *Ledger) Read(ctx context.Context, id int64) (Record, error) {
	op, err := l.store.Operation(ctx, id)
	if err != nil {
		return Record{}, err
	}
	snaps, err := l.store.Snapshots(ctx, id)
	if err != nil {
		return Record{}, err
	}
	texts, err := restore(op, snaps)
	if err != nil {
		return Record{}, err
	}
	return Record{Operation: op, Before: texts[RoleBefore], After: texts[RoleAfter]}, nil
}

// restore decompresses snaps and checks them against op's digests.
func restore(op Operation, snaps []Snapshot) (map[Role]string, error) {
	want := map[Role]string{RoleBefore: op.BeforeDigest, RoleAfter: op.AfterDigest}
	out := make(map[Role]string, 2)
	for _, s := range snaps {
		digest, ok := want[s.Role]
		if !ok {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "operation %d: unexpected role %q", op.ID, s.Role)
		}
		if _, dup := out[s.Role]; dup {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "operation %d: duplicate %s snapshot", op.ID, s.Role)
		}
		b, err := Decompress(s.Codec, s.Payload)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "operation %d: %s snapshot", op.ID, s.Role), ErrCorruptSnapshot)
		}
		if Digest(b) != digest || s.Digest != digest {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "operation %d: %s snapshot digest mismatch", op.ID, s.Role)
		}
		out[s.Role] = string(b)
	}
	if len(out) != 2 {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "operation %d: expected 2 snapshots, found %d", op.ID, len(snaps))
	}
	return out, nil
}

// Head returns the most recent operation, or false for an empty ledger.
func (l *Ledger) Head(ctx context.Context) (Operation, bool, error) {
	var head Operation
	found := false
	err := l.store.Scan(ctx, func(op Operation) error {
		head, found = op, true
		return nil
	})
	return head, found, err
}

// ListOptions filters List. Zero values match everything.
type ListOptions struct {
	Actor  string
	Action string
	// Limit keeps only the most recent N matches.
	Limit int
}

// List returns matching operations in ascending id order.
func (l *Ledger) List(ctx context.Context, opts ListOptions) ([]Operation, error) {
	var out []Operation
	err := l.store.Scan(ctx, func(op Operation) error {
		if opts.Actor != "" && op.Actor != opts.Actor {
			return nil
		}
		if opts.Action != "" && op.Action != opts.Action {
			return nil
		}
		out = append(out, op)
		if opts.Limit > 0 && len(out) > opts.Limit {
			out = out[1:]
		}
		return nil
	})
	return out, err
}
