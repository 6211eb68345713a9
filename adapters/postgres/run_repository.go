package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"ddreport/domain/core"
	"ddreport/domain/run"
	"ddreport/internal/errors"
	"ddreport/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository over sqlx. Queries are written
// with ? placeholders and rebound for the connected driver.
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository on an open ledger connection
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Record upserts a run summary
func (r *RunRepositoryImpl) Record(ctx context.Context, rec run.Record) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO report_runs (
			id, state, failed_at, workbook_name, filled_path, final_path,
			narrative_chars, error, started_at, finished_at
		) VALUES (
			:id, :state, :failed_at, :workbook_name, :filled_path, :final_path,
			:narrative_chars, :error, :started_at, :finished_at
		)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			failed_at = EXCLUDED.failed_at,
			filled_path = EXCLUDED.filled_path,
			final_path = EXCLUDED.final_path,
			narrative_chars = EXCLUDED.narrative_chars,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`, rec)
	if err != nil {
		return errors.DatabaseError("failed to record run "+rec.ID.String(), err)
	}
	return nil
}

// Get retrieves one run summary
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*run.Record, error) {
	var rec run.Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`
		SELECT id, state, failed_at, workbook_name, filled_path, final_path,
		       narrative_chars, error, started_at, finished_at
		FROM report_runs
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load run "+id.String(), err)
	}
	return &rec, nil
}

// ListRecent returns the most recently started runs
func (r *RunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]run.Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var recs []run.Record
	err := r.db.SelectContext(ctx, &recs, r.db.Rebind(`
		SELECT id, state, failed_at, workbook_name, filled_path, final_path,
		       narrative_chars, error, started_at, finished_at
		FROM report_runs
		ORDER BY started_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return recs, nil
}
