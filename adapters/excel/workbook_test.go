package excel

import (
	"os"
	"path/filepath"
	"testing"

	"ddreport/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, name string, build func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestCellValueReadsActiveSheet(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx", func(f *excelize.File) {
		require.NoError(t, f.SetCellValue("Sheet1", "D2", "ignored"))
		idx, err := f.NewSheet("Survey")
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Survey", "D2", "Bank X"))
		require.NoError(t, f.SetCellValue("Survey", "C7", 42))
		f.SetActiveSheet(idx)
	})

	wb, err := OpenWorkbook(path, DefaultExcelConfig(), nil)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, "Survey", wb.ActiveSheet())

	v, err := wb.CellValue("D2")
	require.NoError(t, err)
	assert.Equal(t, "Bank X", v)

	v, err = wb.CellValue("C7")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestCellValueEmptyAndOutOfRange(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx", func(f *excelize.File) {
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "x"))
	})
	wb, err := OpenWorkbook(path, DefaultExcelConfig(), nil)
	require.NoError(t, err)
	defer wb.Close()

	for _, addr := range []string{"D2", "ZZ9999", "XFE1", "A1048577"} {
		v, err := wb.CellValue(addr)
		require.NoError(t, err, addr)
		assert.Equal(t, "", v, addr)
	}

	_, err = wb.CellValue("2D")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestOpenWorkbookErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenWorkbook(filepath.Join(dir, "data.csv"), DefaultExcelConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = OpenWorkbook(filepath.Join(dir, "missing.xlsx"), DefaultExcelConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtraction, errors.GetCode(err))

	corrupt := filepath.Join(dir, "corrupt.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a workbook"), 0o644))
	_, err = OpenWorkbook(corrupt, DefaultExcelConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtraction, errors.GetCode(err))
}

func TestAcceptsExtension(t *testing.T) {
	cfg := DefaultExcelConfig()
	assert.True(t, cfg.AcceptsExtension("report.XLSX"))
	assert.True(t, cfg.AcceptsExtension("/tmp/upload-1.xlsm"))
	assert.False(t, cfg.AcceptsExtension("report.xls"))
	assert.False(t, cfg.AcceptsExtension("report"))
}
