package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"ddreport/adapters/excel"
	"ddreport/app"
	"ddreport/domain/run"
	"ddreport/internal/artifacts"
	"ddreport/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// ReportGenerator runs the report pipeline for one uploaded workbook
type ReportGenerator interface {
	Generate(ctx context.Context, req app.Request) *run.Run
}

// ServerConfig holds the HTTP surface's limits
type ServerConfig struct {
	MaxConcurrentRuns int
	MaxUploadMB       int
	Excel             excel.ExcelConfig
}

// Server is the web front end: one upload form, one download action
type Server struct {
	router    *gin.Engine
	templates *template.Template
	config    ServerConfig
	generator ReportGenerator
	store     *artifacts.Store
	runs      ports.RunRepository // nil when no ledger is configured
	slots     *semaphore.Weighted
	logger    *zap.Logger
}

// NewServer creates a new web server instance
func NewServer(config ServerConfig, generator ReportGenerator, store *artifacts.Store, runs ports.RunRepository, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxConcurrentRuns < 1 {
		config.MaxConcurrentRuns = 1
	}
	if config.MaxUploadMB < 1 {
		config.MaxUploadMB = 50
	}

	s := &Server{
		router:    gin.New(),
		config:    config,
		generator: generator,
		store:     store,
		runs:      runs,
		slots:     semaphore.NewWeighted(int64(config.MaxConcurrentRuns)),
		logger:    logger,
	}

	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) parseTemplates() error {
	funcMap := template.FuncMap{
		"levelClass": func(l run.Level) string {
			switch l {
			case run.LevelSuccess:
				return "banner-success"
			case run.LevelWarning:
				return "banner-warning"
			case run.LevelError:
				return "banner-error"
			default:
				return "banner-info"
			}
		},
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return fmt.Sprintf("%.2fs", d.Seconds())
		},
	}

	templatesFS, err := fs.Sub(embeddedFiles, "templates")
	if err != nil {
		return fmt.Errorf("failed to create templates filesystem: %w", err)
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/reports", s.handleGenerate)
	s.router.GET("/reports", s.handleListRuns)
	s.router.GET("/reports/:id", s.handleGetRun)
	s.router.GET("/reports/:id/download", s.handleDownload)
	s.router.GET("/healthz", s.handleHealth)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then drains in-flight runs
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting report server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down report server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
