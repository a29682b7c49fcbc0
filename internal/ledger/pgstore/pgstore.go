// Package pgstore keeps the ledger in PostgreSQL.
//
// Appends run in one transaction under a transaction-scoped advisory lock,
// so concurrent writers from any process are serialized. Scans read from a
// REPEATABLE READ snapshot.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/privaudit/privaudit/internal/ledger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// advisoryKey identifies the ledger append lock.
const advisoryKey int64 = 0x70726976617564 // "privaud"

// Store is a ledger.Store backed by PostgreSQL.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// Migrate applies the embedded schema migrations to dsn.
func Migrate(dsn string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "create migration source")
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return errors.Wrap(err, "create migrator")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// Open migrates the schema and connects to dsn.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := Migrate(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.CombineErrors(errors.Wrap(err, "ping database"), db.Close())
	}
	return &Store{db: db, log: logger.With("component", "pgstore")}, nil
}

func withTx[T any](ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return zero, errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, errors.Wrap(err, "commit transaction")
	}
	return result, nil
}

var readOnly = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Append implements ledger.Store.
func (s *Store) Append(ctx context.Context, build ledger.BuildFunc) (ledger.Operation, error) {
	return withTx(ctx, s.db, nil, func(tx *sql.Tx) (ledger.Operation, error) {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey); err != nil {
			return ledger.Operation{}, errors.Wrap(err, "acquire ledger lock")
		}
		var (
			lastID int64
			prev   = ledger.EmptyChain
		)
		err := tx.QueryRowContext(ctx, `SELECT id, chain_digest FROM operations ORDER BY id DESC LIMIT 1`).Scan(&lastID, &prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return ledger.Operation{}, errors.Wrap(err, "read head")
		}

		op, snaps, err := build(prev)
		if err != nil {
			return ledger.Operation{}, err
		}
		op, snaps = ledger.Finish(lastID+1, op, snaps)

		meta, err := encodeMeta(op.Meta)
		if err != nil {
			return ledger.Operation{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO operations (id, ts, actor, action, source_ref, before_digest, after_digest, prev_chain_digest, chain_digest, meta)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			op.ID, op.Timestamp, op.Actor, op.Action, op.SourceRef,
			op.BeforeDigest, op.AfterDigest, op.PrevChainDigest, op.ChainDigest, meta,
		); err != nil {
			return ledger.Operation{}, errors.Wrap(err, "insert operation")
		}
		for _, sn := range snaps {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO snapshots (operation_id, role, codec, digest, payload)
				VALUES ($1, $2, $3, $4, $5)`,
				sn.OperationID, string(sn.Role), string(sn.Codec), sn.Digest, sn.Payload,
			); err != nil {
				return ledger.Operation{}, errors.Wrapf(err, "insert %s snapshot", sn.Role)
			}
		}
		return op, nil
	})
}

const selectOperation = `
	SELECT id, ts, actor, action, source_ref, before_digest, after_digest, prev_chain_digest, chain_digest, meta
	FROM operations`

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(sc scanner) (ledger.Operation, error) {
	var (
		op   ledger.Operation
		meta []byte
	)
	if err := sc.Scan(&op.ID, &op.Timestamp, &op.Actor, &op.Action, &op.SourceRef,
		&op.BeforeDigest, &op.AfterDigest, &op.PrevChainDigest, &op.ChainDigest, &meta); err != nil {
		return ledger.Operation{}, err
	}
	op.Timestamp = op.Timestamp.UTC()
	if err := json.Unmarshal(meta, &op.Meta); err != nil {
		return ledger.Operation{}, ledger.CorruptOperation(op.ID, errors.Wrap(err, "decode meta"))
	}
	if len(op.Meta) == 0 {
		op.Meta = nil
	}
	return op, nil
}

// Operation implements ledger.Store.
func (s *Store) Operation(ctx context.Context, id int64) (ledger.Operation, error) {
	op, err := scanOperation(s.db.QueryRowContext(ctx, selectOperation+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Operation{}, errors.Wrapf(ledger.ErrNotFound, "operation %d", id)
	}
	if errors.Is(err, ledger.ErrCorruptOperation) {
		return ledger.Operation{}, err
	}
	return op, errors.Wrapf(err, "read operation %d", id)
}

// Snapshots implements ledger.Store.
func (s *Store) Snapshots(ctx context.Context, id int64) ([]ledger.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, role, codec, digest, payload
		FROM snapshots WHERE operation_id = $1 ORDER BY role DESC`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshots of %d", id)
	}
	defer rows.Close()
	var out []ledger.Snapshot
	for rows.Next() {
		var (
			sn          ledger.Snapshot
			role, codec string
		)
		if err := rows.Scan(&sn.OperationID, &role, &codec, &sn.Digest, &sn.Payload); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		sn.Role, sn.Codec = ledger.Role(role), ledger.Codec(codec)
		out = append(out, sn)
	}
	return out, errors.Wrap(rows.Err(), "read snapshots")
}

// Scan implements ledger.Store.
func (s *Store) Scan(ctx context.Context, fn func(ledger.Operation) error) error {
	_, err := withTx(ctx, s.db, readOnly, func(tx *sql.Tx) (struct{}, error) {
		rows, err := tx.QueryContext(ctx, selectOperation+` ORDER BY id`)
		if err != nil {
			return struct{}{}, errors.Wrap(err, "scan operations")
		}
		defer rows.Close()
		for rows.Next() {
			op, err := scanOperation(rows)
			if err != nil {
				return struct{}{}, err
			}
			if err := fn(op); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, errors.Wrap(rows.Err(), "scan operations")
	})
	return err
}

// Close implements ledger.Store.
func (s *Store) Close() error {
	s.log.Debug("closing database connection")
	return s.db.Close()
}

func encodeMeta(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	return b, errors.Wrap(err, "encode meta")
}
