package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"ddreport/domain/core"
	"ddreport/domain/run"
	"ddreport/internal/errors"
	"ddreport/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL, or to an in-memory SQLite
// ledger when it is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		url = "sqlite://:memory:"
	}
	db, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	rec := run.Record{
		ID:             core.NewRunID(),
		State:          run.StateDone,
		WorkbookName:   "survey.xlsx",
		FilledPath:     "/out/a/surveyreport.docx",
		FinalPath:      "/out/a/final_report.docx",
		NarrativeChars: 120,
		StartedAt:      started,
		FinishedAt:     started.Add(3 * time.Second),
	}
	require.NoError(t, repo.Record(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, run.StateDone, got.State)
	assert.Equal(t, 120, got.NarrativeChars)
	assert.True(t, rec.StartedAt.Equal(got.StartedAt))

	rec.State = run.StateFailed
	rec.Error = "boom"
	require.NoError(t, repo.Record(ctx, rec))
	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StateFailed, got.State)
	assert.Equal(t, "boom", got.Error)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)

	_, err = repo.Get(ctx, core.NewRunID())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestRunRepositoryListRecentOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	var ids []core.RunID
	for i := 0; i < 3; i++ {
		rec := run.Record{
			ID:           core.NewRunID(),
			State:        run.StateDone,
			WorkbookName: "survey.xlsx",
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
			FinishedAt:   base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		require.NoError(t, repo.Record(ctx, rec))
		ids = append(ids, rec.ID)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		dsn    string
	}{
		{"postgres://u:p@localhost/ddreport?sslmode=disable", "postgres", "postgres://u:p@localhost/ddreport?sslmode=disable"},
		{"sqlite://ledger.db", DriverSQLite, "ledger.db"},
		{"sqlite:/var/lib/ddreport/ledger.db", DriverSQLite, "/var/lib/ddreport/ledger.db"},
		{"sqlite://:memory:", DriverSQLite, ":memory:"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn := ParseURL(tt.url)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestOpenRejectsEmptySQLitePath(t *testing.T) {
	_, err := Open(context.Background(), "sqlite://")
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
