// Package migrator applies goose migrations from an embedded FS.
package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/ghuser/lendingdesk/pkg/database"
)

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Up opens dsn and applies every pending migration in files.
func Up(ctx context.Context, dsn string, files fs.FS) error {
	return withDB(dsn, func(db *sql.DB) error { return Apply(ctx, db, files) })
}

// Down rolls back the most recent migration in files.
func Down(ctx context.Context, dsn string, files fs.FS) error {
	return withDB(dsn, func(db *sql.DB) error {
		return run(files, func() error {
			if err := goose.DownContext(ctx, db, "."); err != nil {
				return fmt.Errorf("failed to down migration: %w", err)
			}
			return nil
		})
	})
}

// Status logs the applied state of every migration in files.
func Status(ctx context.Context, dsn string, files fs.FS) error {
	return withDB(dsn, func(db *sql.DB) error {
		return run(files, func() error {
			if err := goose.StatusContext(ctx, db, "."); err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}
			return nil
		})
	})
}

// Apply runs all pending migrations on an already open db.
func Apply(ctx context.Context, db *sql.DB, files fs.FS) error {
	return run(files, func() error {
		if err := goose.UpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("failed to up migrations: %w", err)
		}
		return nil
	})
}

func run(files fs.FS, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn()
}

func withDB(dsn string, fn func(db *sql.DB) error) error {
	db, err := sql.Open(database.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck
	return fn(db)
}
