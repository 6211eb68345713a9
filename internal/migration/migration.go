package migration

import (
	"context"

	"ddreport/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createReportRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create report_runs table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createReportRunsTable(ctx context.Context, db *sqlx.DB) error {
	idType, timeType := "UUID", "TIMESTAMP WITH TIME ZONE"
	if db.DriverName() == "sqlite3" {
		// go-sqlite3 only decodes times for columns declared exactly TIMESTAMP
		idType, timeType = "TEXT", "TIMESTAMP"
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS report_runs (
			id `+idType+` PRIMARY KEY,
			state VARCHAR(32) NOT NULL,
			failed_at VARCHAR(32) NOT NULL DEFAULT '',
			workbook_name TEXT NOT NULL DEFAULT '',
			filled_path TEXT NOT NULL DEFAULT '',
			final_path TEXT NOT NULL DEFAULT '',
			narrative_chars INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at `+timeType+` NOT NULL,
			finished_at `+timeType+` NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_report_runs_started_at ON report_runs(started_at DESC)
	`)
	return err
}
