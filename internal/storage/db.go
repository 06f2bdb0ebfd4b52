// Package storage provides the database handle, migrations and the ledger
// repositories. SQLite (mattn/go-sqlite3) and Postgres (pgx) are both served
// through database/sql so the repositories carry a single set of queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rescan/internal/config"
	apperrors "github.com/rescan/internal/errors"
)

// DB wraps the sql.DB handle shared by every repository
type DB struct {
	sql    *sql.DB
	driver string
	closer func()
}

// Open connects to the configured storage engine
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLite.Path)
	case config.DriverPostgres:
		return NewPostgresDB(&cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens a SQLite database file. A single connection serializes
// writers; WAL keeps readers from blocking on it.
func OpenSQLite(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	return &DB{sql: db, driver: config.DriverSQLite}, nil
}

// SQL returns the underlying handle
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Driver returns the configured driver name
func (db *DB) Driver() string {
	return db.driver
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.sql.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close closes the database handle
func (db *DB) Close() error {
	err := db.sql.Close()
	if db.closer != nil {
		db.closer()
	}
	return err
}

// WithTx runs fn inside a transaction. The transaction commits only when fn
// returns nil; any error or panic rolls it back.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.withTx(ctx, nil, fn)
}

// WithReadTx runs fn in a read-only transaction that sees one snapshot.
// SQLite transactions already do; Postgres needs REPEATABLE READ for it.
func (db *DB) WithReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var opts *sql.TxOptions
	if db.driver == config.DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return db.withTx(ctx, opts, fn)
}

func (db *DB) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, opts)
	if err != nil {
		return classify("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.NewTimeoutError("commit", ctxErr)
		}
		return classify("commit", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
