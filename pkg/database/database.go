// Package database owns the PostgreSQL connection pool and the single
// transaction helper every repository goes through.
//
// The pool is a *sql.DB on the pgx stdlib driver so the same handle (and the
// same *sql.Tx) can be shared with Watermill's SQL publisher for outbox writes.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/ghuser/lendingdesk/pkg/logger"
)

// DriverName is the database/sql driver registered by pgx/v5/stdlib.
const DriverName = "pgx"

// Options tunes the pool. Zero values fall back to defaults.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	// TxTimeout bounds every WithTx call, including time spent waiting on row locks.
	TxTimeout time.Duration
}

const (
	defaultMaxOpenConns = 20
	defaultMaxIdleConns = 5
	defaultTxTimeout    = 10 * time.Second
)

// Database wraps *sql.DB with transaction management.
type Database struct {
	db        *sql.DB
	txTimeout time.Duration
	log       logger.Logger
}

// NewPool opens a pgx-backed pool for dsn and verifies connectivity.
func NewPool(ctx context.Context, dsn string, opts Options, log logger.Logger) (*Database, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaultMaxIdleConns
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultTxTimeout
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(db, opts.TxTimeout, log), nil
}

// New wraps an already opened *sql.DB. Used by tests and by NewPool.
func New(db *sql.DB, txTimeout time.Duration, log logger.Logger) *Database {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Database{db: db, txTimeout: txTimeout, log: log}
}

// DB returns the underlying pool for non-transactional reads.
func (d *Database) DB() *sql.DB {
	return d.db
}

// WithTx runs fn inside a READ COMMITTED transaction. fn's error, a panic, a
// cancelled ctx or a failed commit all roll the transaction back; nothing fn
// wrote is visible unless WithTx returns nil.
func (d *Database) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.txTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				d.log.ErrorContext(ctx, "rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks the database connection health.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (d *Database) Close() error {
	return d.db.Close()
}
