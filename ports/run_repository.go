package ports

import (
	"context"

	"ddreport/domain/core"
	"ddreport/domain/run"
)

// RunRepository persists summaries of finished runs
type RunRepository interface {
	// Record inserts or replaces the summary of a run
	Record(ctx context.Context, rec run.Record) error

	// Get returns one run summary, NOT_FOUND when absent
	Get(ctx context.Context, id core.RunID) (*run.Record, error)

	// ListRecent returns the newest runs first
	ListRecent(ctx context.Context, limit int) ([]run.Record, error)
}
