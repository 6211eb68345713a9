package app

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"time"

	"ddreport/adapters/excel"
	"ddreport/domain/mapping"
	"ddreport/internal/docx"
	"ddreport/internal/errors"
	"ddreport/ports"

	"go.uber.org/zap"
)

// FillerConfig is the uniform typography applied to every filled document
type FillerConfig struct {
	FontFamily string
	FontSizePt float64
}

// DefaultFillerConfig returns the reference deployment's typography
func DefaultFillerConfig() FillerConfig {
	return FillerConfig{FontFamily: "仿宋_GB2312", FontSizePt: 16}
}

// TemplateFiller substitutes workbook values into a document template
type TemplateFiller struct {
	config FillerConfig
	excel  excel.ExcelConfig
	logger *zap.Logger
}

// FillResult describes one filled document
type FillResult struct {
	OutputPath          string
	Replacements        *mapping.ReplacementTable
	ParagraphsRewritten int
	CellsRewritten      int
}

// NewTemplateFiller creates a template filler
func NewTemplateFiller(config FillerConfig, excelConfig excel.ExcelConfig, logger *zap.Logger) *TemplateFiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateFiller{config: config, excel: excelConfig, logger: logger}
}

// BuildReplacementTable reads every mapped cell. Empty and missing cells map
// to "", so every configured token has a value.
func (f *TemplateFiller) BuildReplacementTable(wb ports.CellReader, m mapping.Mapping) (*mapping.ReplacementTable, error) {
	table := mapping.NewReplacementTable()
	for _, entry := range m {
		value, err := wb.CellValue(entry.Cell)
		if err != nil {
			return nil, errors.Wrapf(err, "placeholder %s", entry.Token)
		}
		table.Set(entry.Token, value)
	}
	return table, nil
}

// Fill opens the workbook at workbookPath and fills the template with it
func (f *TemplateFiller) Fill(ctx context.Context, workbookPath, templatePath, outPath string, m mapping.Mapping) (*FillResult, error) {
	wb, err := excel.OpenWorkbook(workbookPath, f.excel, f.logger)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return f.FillFrom(ctx, wb, templatePath, outPath, m)
}

// FillFrom fills the template at templatePath with values read from wb and
// saves the result to outPath. A failed save may leave a partial file.
func (f *TemplateFiller) FillFrom(ctx context.Context, wb ports.CellReader, templatePath, outPath string, m mapping.Mapping) (*FillResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	table, err := f.BuildReplacementTable(wb, m)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Open(templatePath)
	if err != nil {
		return nil, errors.ExtractionError("failed to open template "+templatePath, err)
	}

	result := &FillResult{OutputPath: outPath, Replacements: table}

	for _, p := range doc.Paragraphs() {
		if text, ok := table.Replace(p.Text()); ok {
			p.SetText(text)
			result.ParagraphsRewritten++
		}
	}
	for _, t := range doc.Tables() {
		for _, row := range t.Rows {
			for _, cell := range row.Cells {
				if text, ok := table.Replace(cell.Text()); ok {
					cell.SetText(text)
					result.CellsRewritten++
				}
			}
		}
	}

	if f.config.FontFamily != "" && f.config.FontSizePt > 0 {
		halfPoints := int(math.Round(f.config.FontSizePt * 2))
		if err := doc.SetDefaultFont(f.config.FontFamily, halfPoints); err != nil {
			return nil, errors.ExtractionError("failed to apply document font", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(outPath))
	}
	if err := doc.Save(outPath); err != nil {
		return nil, errors.Wrapf(err, "failed to save filled document %s", outPath)
	}

	f.logger.Info("template filled",
		zap.String("output", outPath),
		zap.Int("placeholders", table.Len()),
		zap.Int("paragraphs_rewritten", result.ParagraphsRewritten),
		zap.Int("cells_rewritten", result.CellsRewritten),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}
