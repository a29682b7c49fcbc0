// Package cache remembers content hashes of documents already recorded so
// incremental batch runs can skip unchanged files.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// FileName is the cache file kept beside the ledger.
const FileName = "incremental.json"

// DB maps a document path to the hash of the content last recorded for it.
// It is safe for concurrent use.
type DB struct {
	path string

	mu      sync.Mutex
	Entries map[string]string `json:"entries"`
}

// DefaultPath returns the cache location inside a state directory.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Hash returns the xxhash64 of content as hex.
func Hash(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// Load reads the cache at path. A missing file yields an empty cache.
func Load(path string) (*DB, error) {
	db := &DB{path: path, Entries: map[string]string{}}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return db, errors.Wrap(err, "read cache")
	}
	if err := json.Unmarshal(b, db); err != nil {
		return &DB{path: path, Entries: map[string]string{}}, errors.Wrap(err, "decode cache")
	}
	if db.Entries == nil {
		db.Entries = map[string]string{}
	}
	return db, nil
}

// Unchanged reports whether content hashes to the value stored for key.
func (db *DB) Unchanged(key string, content []byte) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	h, ok := db.Entries[key]
	return ok && h == Hash(content)
}

// Put stores the hash of content for key.
func (db *DB) Put(key string, content []byte) {
	h := Hash(content)
	db.mu.Lock()
	db.Entries[key] = h
	db.mu.Unlock()
}

// Save writes the cache back to its path.
func (db *DB) Save() error {
	db.mu.Lock()
	b, err := json.MarshalIndent(db, "", "  ")
	db.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "encode cache")
	}
	if err := os.MkdirAll(filepath.Dir(db.path), 0o700); err != nil {
		return errors.Wrap(err, "create cache dir")
	}
	return errors.Wrap(os.WriteFile(db.path, b, 0o600), "write cache")
}
