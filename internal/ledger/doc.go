// Package ledger is the append-only, hash-chained audit log of redaction
// operations. Each Operation binds its payload to its predecessor through
// ChainDigest and owns exactly two compressed Snapshots (before and after)
// that are persisted atomically with it.
//
// The Ledger serializes appends; concrete Stores add durability and
// cross-process exclusion. See the pebblestore, filestore and pgstore
// subpackages.
package ledger
