package ledger

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// VerifyOptions controls Verify.
type VerifyOptions struct {
	// Deep also restores every snapshot and checks it against the
	// operation's before and after digests.
	Deep bool
}

// Verification is the outcome of a chain walk. A broken chain is reported
// here and not as an error.
type Verification struct {
	Intact bool `json:"intact"`
	// FirstBroken is the id of the first operation that failed a check, or 0.
	FirstBroken int64  `json:"first_broken,omitempty"`
	Reason      string `json:"reason,omitempty"`
	// Checked counts the operations examined, including the broken one.
	Checked int `json:"checked"`
}

var errStopWalk = errors.New("stop walk")

// Verify walks the ledger in id order and recomputes every chain digest from
// its payload and the predecessor's stored chain digest. It stops at the
// first inconsistency. Nothing is repaired.
func (l *Ledger) Verify(ctx context.Context, opts VerifyOptions) (Verification, error) {
	v := Verification{Intact: true}
	prev := EmptyChain
	var lastID int64

	brk := func(id int64, format string, args ...any) error {
		v.Intact = false
		v.FirstBroken = id
		v.Reason = fmt.Sprintf(format, args...)
		return errStopWalk
	}

	err := l.store.Scan(ctx, func(op Operation) error {
		v.Checked++
		if op.ID <= lastID {
			return brk(op.ID, "id %d does not follow %d", op.ID, lastID)
		}
		if op.PrevChainDigest != prev {
			return brk(op.ID, "prev_chain_digest does not match operation %d", lastID)
		}
		want, err := ChainDigest(prev, op)
		if err != nil {
			return err
		}
		if want != op.ChainDigest {
			return brk(op.ID, "chain_digest mismatch")
		}
		if opts.Deep {
			snaps, err := l.store.Snapshots(ctx, op.ID)
			if err != nil {
				if errors.Is(err, ErrCorruptSnapshot) {
					return brk(op.ID, "%v", err)
				}
				return err
			}
			if _, err := restore(op, snaps); err != nil {
				if errors.Is(err, ErrCorruptSnapshot) {
					return brk(op.ID, "%v", err)
				}
				return err
			}
		}
		prev, lastID = op.ChainDigest, op.ID
		return nil
	})
	var corrupt *CorruptOperationError
	if err != nil && errors.As(err, &corrupt) {
		v.Checked++
		err = brk(corrupt.ID, "%v", corrupt)
	}
	if err != nil && !errors.Is(err, errStopWalk) {
		return Verification{}, errors.Wrap(err, "verify ledger")
	}
	if v.Intact {
		l.log.Debug("ledger verified", "checked", v.Checked, "deep", opts.Deep)
	} else {
		l.log.Warn("ledger chain broken", "id", v.FirstBroken, "reason", v.Reason)
	}
	return v, nil
}
