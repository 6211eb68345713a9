package main

import (
	"context"
	"os"
	"time"

	"ddreport/adapters/postgres"
	"ddreport/internal"
	"ddreport/internal/migration"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	logger, err := internal.NewLogger(zapcore.InfoLevel, true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		logger.Fatal("Usage: migrate <database_url|sqlite://path> (or set DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	runner := migration.NewRunner()
	logger.Info("Applying schema", zap.String("version", runner.Version()))
	if err := runner.Run(ctx, db); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	recent, err := postgres.NewRunRepository(db).ListRecent(ctx, 5)
	if err != nil {
		logger.Fatal("Run ledger not readable after migration", zap.Error(err))
	}
	logger.Info("Migration complete", zap.Int("recent_runs", len(recent)))
}
