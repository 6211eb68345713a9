package postgres

import (
	"context"
	"strings"

	"ddreport/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DriverSQLite is the driver name used for sqlite:// ledger URLs
const DriverSQLite = "sqlite3"

// ParseURL maps a ledger URL to a driver and DSN. "sqlite://path" (or
// "sqlite:path") selects a local SQLite file; everything else is handed to
// lib/pq.
func ParseURL(url string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite:")
	default:
		return "postgres", url
	}
}

// Open connects to the run ledger named by url
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	driver, dsn := ParseURL(url)
	if dsn == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL has no database path")
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to "+driver+" ledger", err)
	}
	if driver == DriverSQLite {
		// One writer; also keeps ":memory:" to a single database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
