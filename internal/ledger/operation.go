package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// EmptyChain is the prev_chain_digest of the first operation.
const EmptyChain = ""

// ActionRedact is the action label for redaction events.
const ActionRedact = "redact"

// TimestampLayout is the fixed UTC rendering of an operation timestamp inside
// the canonical payload.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Role distinguishes the two snapshots of an operation.
type Role string

const (
	RoleBefore Role = "before"
	RoleAfter  Role = "after"
)

// Operation is one ledger entry. It is immutable once appended.
type Operation struct {
	ID              int64             `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Actor           string            `json:"actor"`
	Action          string            `json:"action"`
	SourceRef       string            `json:"source_ref"`
	BeforeDigest    string            `json:"before_digest"`
	AfterDigest     string            `json:"after_digest"`
	PrevChainDigest string            `json:"prev_chain_digest"`
	ChainDigest     string            `json:"chain_digest"`
	Meta            map[string]string `json:"meta,omitempty"`
}

// Snapshot is a compressed copy of one side of an operation. Digest is the
// SHA-256 of the uncompressed text and equals the operation's before or
// after digest.
type Snapshot struct {
	OperationID int64  `json:"operation_id"`
	Role        Role   `json:"role"`
	Codec       Codec  `json:"codec"`
	Digest      string `json:"digest"`
	Payload     []byte `json:"payload"`
}

// Digest returns the lowercase hex SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CanonicalPayload is the deterministic encoding hashed into the chain:
// compact JSON with sorted keys and no HTML escaping over timestamp, actor,
// action, source_ref, before_digest, after_digest and meta.
func CanonicalPayload(op Operation) ([]byte, error) {
	meta := op.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	// encoding/json writes map keys in sorted order.
	payload := map[string]any{
		"action":        op.Action,
		"actor":         op.Actor,
		"after_digest":  op.AfterDigest,
		"before_digest": op.BeforeDigest,
		"meta":          meta,
		"source_ref":    op.SourceRef,
		"timestamp":     FormatTimestamp(op.Timestamp),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ChainDigest computes hex(SHA-256(prev || CanonicalPayload(op))).
func ChainDigest(prev string, op Operation) (string, error) {
	payload, err := CanonicalPayload(op)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func cloneMeta(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
