package app

import (
	"context"
	"path/filepath"
	"testing"

	"ddreport/domain/core"
	"ddreport/domain/run"
	"ddreport/internal/docx"
	"ddreport/internal/errors"
	"ddreport/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// cellMap is an in-memory workbook.
type cellMap map[string]string

func (c cellMap) CellValue(addr string) (string, error) {
	if addr == "" || addr[0] < 'A' || addr[0] > 'Z' {
		return "", errors.InvalidInput("invalid cell address " + addr)
	}
	return c[addr], nil
}

func writeWorkbook(t *testing.T, cells map[string]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for addr, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", addr, v))
	}
	path := filepath.Join(t.TempDir(), "survey.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// writeTemplate builds a small survey template: a title, two paragraphs
// with tokens and a two-row table.
func writeTemplate(t *testing.T) string {
	t.Helper()
	doc := docx.New()
	doc.AddParagraph("尽职调查报告")
	doc.AddParagraph("支行：{{A}}")
	doc.AddParagraph("负责人：{{B}}（{{B}}）")
	doc.AddTable([][]string{
		{"机构", "{{A}}"},
		{"负责人", "{{B}}"},
	})
	path := filepath.Join(t.TempDir(), "template.docx")
	require.NoError(t, doc.Save(path))
	return path
}

func paragraphTexts(t *testing.T, path string) []string {
	t.Helper()
	doc, err := docx.Open(path)
	require.NoError(t, err)
	var out []string
	for _, p := range doc.Paragraphs() {
		out = append(out, p.Text())
	}
	return out
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, model, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	args := m.Called(ctx, model, prompt, maxTokens)
	resp, _ := args.Get(0).(*ports.LLMResponse)
	return resp, args.Error(1)
}

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) Record(ctx context.Context, rec run.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRunRepository) Get(ctx context.Context, id core.RunID) (*run.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*run.Record)
	return rec, args.Error(1)
}

func (m *mockRunRepository) ListRecent(ctx context.Context, limit int) ([]run.Record, error) {
	args := m.Called(ctx, limit)
	recs, _ := args.Get(0).([]run.Record)
	return recs, args.Error(1)
}
