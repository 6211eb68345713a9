package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ddreport/domain/cellref"
	"ddreport/internal/errors"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook reads single cells from the active sheet of a spreadsheet
type Workbook struct {
	path   string
	file   *excelize.File
	sheet  string
	raw    bool
	logger *zap.Logger
}

// AcceptsExtension reports whether filename has one of the configured extensions
func (c ExcelConfig) AcceptsExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range c.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// OpenWorkbook opens the workbook at path and selects its active sheet
func OpenWorkbook(path string, cfg ExcelConfig, logger *zap.Logger) (*Workbook, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.AcceptsExtension(path) {
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported workbook type %q: expected one of %s",
			filepath.Ext(path), strings.Join(cfg.Extensions, ", ")))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.ExtractionError("workbook not found", err)
	}

	start := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.ExtractionError("failed to open workbook", err)
	}

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, errors.ExtractionError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}

	logger.Debug("workbook opened",
		zap.String("path", path),
		zap.String("sheet", sheet),
		zap.Duration("elapsed", time.Since(start)))

	return &Workbook{
		path:   path,
		file:   f,
		sheet:  sheet,
		raw:    cfg.RawValues,
		logger: logger,
	}, nil
}

// ActiveSheet returns the name of the sheet cells are read from
func (w *Workbook) ActiveSheet() string {
	return w.sheet
}

// CellValue returns the string form of the cell at addr. Empty cells and
// cells beyond the sheet's limits read as "".
func (w *Workbook) CellValue(addr string) (string, error) {
	row, col, err := cellref.Resolve(addr)
	if err != nil {
		return "", err
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.logger.Debug("cell outside sheet limits", zap.String("cell", addr), zap.Error(err))
		return "", nil
	}
	value, err := w.file.GetCellValue(w.sheet, name, excelize.Options{RawCellValue: w.raw})
	if err != nil {
		return "", errors.ExtractionError(fmt.Sprintf("failed to read cell %s", addr), err)
	}
	return value, nil
}

// Close releases the underlying file
func (w *Workbook) Close() error {
	return w.file.Close()
}
