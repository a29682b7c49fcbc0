// Package seal signs a ledger head with a secp256k1 key so a third party
// can later confirm that the chain up to that point has not been rewritten.
package seal

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/privaudit/privaudit/internal/ledger"
)

// Version is the current seal format.
const Version = 1

// ErrMismatch is returned when a seal does not match its signature or the
// ledger it is checked against.
var ErrMismatch = errors.New("seal does not match")

// Seal attests that the ledger head with HeadID had ChainDigest at SignedAt.
type Seal struct {
	Version     int    `json:"version"`
	HeadID      int64  `json:"head_id"`
	ChainDigest string `json:"chain_digest"`
	SignedAt    string `json:"signed_at"`
	Address     string `json:"address"`
	Signature   string `json:"signature"`
}

// LoadKey parses a hex-encoded private key (0x prefix optional).
func LoadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid seal key"), "expected 32 bytes of hex")
	}
	return key, nil
}

// LoadKeyFile reads a key written by GenerateKey or any hex key file.
func LoadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return LoadKey(string(b))
}

// GenerateKey returns a new key as hex and its address.
func GenerateKey() (hexKey, address string, err error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", "", errors.Wrap(err, "generate key")
	}
	return hex.EncodeToString(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (s Seal) message() []byte {
	msg := fmt.Sprintf("privaudit-seal:v%d:%d:%s:%s", s.Version, s.HeadID, s.ChainDigest, s.SignedAt)
	sum := sha256.Sum256([]byte(msg))
	return sum[:]
}

// Sign seals head.
func Sign(key *ecdsa.PrivateKey, head ledger.Operation, now time.Time) (Seal, error) {
	s := Seal{
		Version:     Version,
		HeadID:      head.ID,
		ChainDigest: head.ChainDigest,
		SignedAt:    ledger.FormatTimestamp(now.Truncate(time.Microsecond)),
		Address:     crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
	sig, err := crypto.Sign(s.message(), key)
	if err != nil {
		return Seal{}, errors.Wrap(err, "sign")
	}
	s.Signature = hex.EncodeToString(sig)
	return s, nil
}

// VerifySignature checks that Signature was made by Address over the other
// fields.
func (s Seal) VerifySignature() error {
	sig, err := hex.DecodeString(strings.TrimPrefix(s.Signature, "0x"))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "decode signature"), ErrMismatch)
	}
	pub, err := crypto.SigToPub(s.message(), sig)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "recover signer"), ErrMismatch)
	}
	if got := crypto.PubkeyToAddress(*pub).Hex(); !strings.EqualFold(got, s.Address) {
		return errors.Wrapf(ErrMismatch, "signed by %s, claims %s", got, s.Address)
	}
	return nil
}

// Check verifies the signature and that l still holds the sealed head.
func (s Seal) Check(ctx context.Context, l *ledger.Ledger) error {
	if err := s.VerifySignature(); err != nil {
		return err
	}
	rec, err := l.Read(ctx, s.HeadID)
	if err != nil {
		return errors.Wrapf(err, "sealed operation %d", s.HeadID)
	}
	if rec.ChainDigest != s.ChainDigest {
		return errors.Wrapf(ErrMismatch, "operation %d chain digest changed since sealing", s.HeadID)
	}
	return nil
}

// WriteFile stores s as indented JSON.
func WriteFile(path string, s Seal) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode seal")
	}
	return errors.Wrap(os.WriteFile(path, append(b, '\n'), 0o644), "write seal")
}

// ReadFile loads a seal.
func ReadFile(path string) (Seal, error) {
	var s Seal
	b, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrap(err, "read seal")
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, errors.Wrap(err, "decode seal")
	}
	if s.Version != Version {
		return s, errors.Newf("unsupported seal version %d", s.Version)
	}
	return s, nil
}
