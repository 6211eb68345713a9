package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ddreport/internal"
	"ddreport/internal/config"
	"ddreport/internal/container"
	"ddreport/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := appConfig.LogLevel()
	logger, err := internal.NewLogger(level, appConfig.Server.GinMode == gin.DebugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appConfig *config.Config, logger *zap.Logger) error {
	gin.SetMode(appConfig.Server.GinMode)

	appContainer, err := container.New(ctx, appConfig, logger, container.Options{})
	if err != nil {
		return err
	}
	defer appContainer.Close()

	if err := appContainer.Pipeline.CheckTemplate(); err != nil {
		return err
	}

	server, err := ui.NewServer(ui.ServerConfig{
		MaxConcurrentRuns: appConfig.Server.MaxConcurrentRuns,
		MaxUploadMB:       appConfig.Server.MaxUploadMB,
		Excel:             appContainer.ExcelConfig(),
	}, appContainer.Pipeline, appContainer.Store, appContainer.RunRepo, logger)
	if err != nil {
		return err
	}

	return server.Start(ctx, ":"+appConfig.Server.Port)
}
