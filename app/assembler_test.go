package app

import (
	"os"
	"path/filepath"
	"testing"

	"ddreport/internal/docx"
	"ddreport/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleAppendsHeadingAndNarrative(t *testing.T) {
	filled := writeTemplate(t)
	before, err := os.ReadFile(filled)
	require.NoError(t, err)
	final := filepath.Join(t.TempDir(), "final_report.docx")

	narrative := "第一点：风险可控。\n第二点：建议持续关注。"
	require.NoError(t, NewReportAssembler("", nil).Assemble(filled, narrative, final))

	doc, err := docx.Open(final)
	require.NoError(t, err)
	paras := doc.Paragraphs()
	require.GreaterOrEqual(t, len(paras), 2)
	heading, body := paras[len(paras)-2], paras[len(paras)-1]
	assert.Equal(t, DefaultReportHeading, heading.Text())
	assert.Equal(t, "Heading1", heading.Style())
	assert.Equal(t, narrative, body.Text())
	assert.Len(t, doc.Tables(), 1)

	after, err := os.ReadFile(filled)
	require.NoError(t, err)
	assert.Equal(t, before, after, "filled document must not change")
}

func TestAssembleCustomHeading(t *testing.T) {
	final := filepath.Join(t.TempDir(), "final.docx")
	require.NoError(t, NewReportAssembler("Risk Conclusion", nil).Assemble(writeTemplate(t), "ok", final))
	texts := paragraphTexts(t, final)
	assert.Equal(t, []string{"Risk Conclusion", "ok"}, texts[len(texts)-2:])
}

func TestAssembleErrors(t *testing.T) {
	filled := writeTemplate(t)
	err := NewReportAssembler("", nil).Assemble(filled, "x", filepath.Join(filepath.Dir(filled), ".", filepath.Base(filled)))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	err = NewReportAssembler("", nil).Assemble(filepath.Join(t.TempDir(), "none.docx"), "x", filepath.Join(t.TempDir(), "out.docx"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtraction, errors.GetCode(err))
}
