package container

import (
	"context"
	"fmt"

	"ddreport/adapters/excel"
	"ddreport/adapters/llm"
	"ddreport/adapters/postgres"
	"ddreport/app"
	"ddreport/domain/mapping"
	"ddreport/internal/artifacts"
	"ddreport/internal/config"
	"ddreport/internal/errors"
	"ddreport/internal/migration"
	"ddreport/ports"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB    *sqlx.DB
	Store *artifacts.Store

	// Repositories, nil when no DATABASE_URL is configured
	RunRepo ports.RunRepository

	Mapping   mapping.Config
	Generator ports.TextGenerator
	Pipeline  *app.ReportPipeline
}

// Options adjusts what New wires
type Options struct {
	// SkipNarrative builds a pipeline without a text generator
	SkipNarrative bool
	// Generator overrides the configured provider
	Generator ports.TextGenerator
}

// New creates a new dependency injection container. cfg must already be
// validated.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg, Logger: logger}

	mappingCfg, err := mapping.Load(cfg.Report.MappingFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load placeholder mapping")
	}
	c.Mapping = mappingCfg

	c.Store, err = artifacts.NewStore(cfg.Report.OutputDir, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Enabled() {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	}

	if !opts.SkipNarrative {
		c.Generator = opts.Generator
		if c.Generator == nil {
			c.Generator, err = llm.NewClient(ctx, llm.Config{
				Provider:    cfg.AI.Provider,
				Model:       cfg.AI.Model,
				APIKey:      cfg.AI.APIKey,
				BaseURL:     cfg.AI.BaseURL,
				Temperature: cfg.AI.Temperature,
				MaxTokens:   cfg.AI.MaxTokens,
				Timeout:     cfg.AI.Timeout,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	c.initPipeline(opts.SkipNarrative)

	logger.Info("container initialized",
		zap.String("template", cfg.Report.TemplatePath),
		zap.String("output_dir", c.Store.BasePath()),
		zap.Int("placeholders", len(c.Mapping.Mapping)),
		zap.Bool("ledger", c.RunRepo != nil),
		zap.Bool("narrative", !opts.SkipNarrative),
		zap.String("llm_provider", cfg.AI.Provider))
	return c, nil
}

// initDatabase connects, migrates and builds the run ledger
func (c *Container) initDatabase(ctx context.Context) error {
	db, err := postgres.Open(ctx, c.Config.Database.URL)
	if err != nil {
		return err
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}
	c.DB = db
	c.RunRepo = postgres.NewRunRepository(db)
	return nil
}

func (c *Container) initPipeline(skipNarrative bool) {
	cfg := c.Config
	excelCfg := c.ExcelConfig()

	filler := app.NewTemplateFiller(app.FillerConfig{
		FontFamily: cfg.Report.FontFamily,
		FontSizePt: cfg.Report.FontSizePt,
	}, excelCfg, c.Logger)

	var narrator *app.NarrativeRequester
	if c.Generator != nil {
		narrator = app.NewNarrativeRequester(c.Generator, app.NarrativeConfig{
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
		}, c.Logger)
	}

	c.Pipeline = app.NewReportPipeline(app.PipelineConfig{
		TemplatePath:  cfg.Report.TemplatePath,
		Mapping:       c.Mapping.Mapping,
		Facts:         c.Mapping.Facts,
		Excel:         excelCfg,
		SkipNarrative: skipNarrative,
	}, filler, narrator, app.NewReportAssembler(cfg.Report.Heading, c.Logger), c.Store, c.RunRepo, c.Logger)
}

// ExcelConfig returns the workbook settings the pipeline uses
func (c *Container) ExcelConfig() excel.ExcelConfig {
	cfg := excel.DefaultExcelConfig()
	cfg.RawValues = c.Config.Report.RawValues
	return cfg
}

// Close releases the database connection
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
