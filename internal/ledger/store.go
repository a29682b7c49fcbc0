package ledger

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when no operation has the requested id.
	ErrNotFound = errors.New("operation not found")
	// ErrCorruptSnapshot is returned when a stored snapshot is missing, does
	// not decompress, or does not match its digest.
	ErrCorruptSnapshot = errors.New("snapshot is corrupt")
	// ErrLocked is returned when another process holds the ledger.
	ErrLocked = errors.New("ledger is locked by another process")
	// ErrCorruptOperation is returned when a stored operation no longer
	// decodes. The error also carries a *CorruptOperationError.
	ErrCorruptOperation = errors.New("operation is corrupt")
)

// CorruptOperationError locates an operation that a store could not decode.
// For stores that derive ids from position, ID is the id the entry is
// expected to hold.
type CorruptOperationError struct {
	ID    int64
	Cause error
}

func (e *CorruptOperationError) Error() string {
	return fmt.Sprintf("operation %d does not decode: %v", e.ID, e.Cause)
}

func (e *CorruptOperationError) Unwrap() error { return e.Cause }

// CorruptOperation returns an error matching ErrCorruptOperation that
// carries id.
func CorruptOperation(id int64, cause error) error {
	return errors.Mark(&CorruptOperationError{ID: id, Cause: cause}, ErrCorruptOperation)
}

// BuildFunc produces the next operation and its snapshots given the chain
// digest of the last committed operation (EmptyChain for an empty ledger).
// IDs are filled in by the store.
type BuildFunc func(prevChain string) (Operation, [2]Snapshot, error)

// Store is the durable backend of a Ledger.
//
// Append must read the last chain digest, call build, assign the next id and
// persist the operation with both snapshots as one atomic unit. Readers must
// only observe fully committed operations.
type Store interface {
	Append(ctx context.Context, build BuildFunc) (Operation, error)
	// Operation returns ErrNotFound for unknown ids.
	Operation(ctx context.Context, id int64) (Operation, error)
	Snapshots(ctx context.Context, id int64) ([]Snapshot, error)
	// Scan visits operations in ascending id order over a consistent view.
	// Returning an error from fn stops the scan and returns that error.
	Scan(ctx context.Context, fn func(Operation) error) error
	Close() error
}

// Finish assigns id to op and its snapshots. Stores call it after choosing
// the next id inside their critical section.
func Finish(id int64, op Operation, snaps [2]Snapshot) (Operation, [2]Snapshot) {
	op.ID = id
	for i := range snaps {
		snaps[i].OperationID = id
	}
	return op, snaps
}
