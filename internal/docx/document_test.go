package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

func wrapBody(inner string) string {
	return xml.Header + `<w:document ` + testNS + `><w:body>` + inner +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
}

func buildPackage(t *testing.T, document, styles string) []byte {
	t.Helper()
	p := &pkg{}
	p.put(contentTypesPart, []byte(blankContentTypes))
	p.put(packageRelsPart, []byte(blankPackageRels))
	p.put(defaultMainPart, []byte(document))
	if styles != "" {
		p.put(relsPartFor(defaultMainPart), []byte(blankDocumentRels))
		p.put("word/styles.xml", []byte(styles))
	}
	var buf bytes.Buffer
	require.NoError(t, p.write(&buf, nil))
	return buf.Bytes()
}

func readBytes(t *testing.T, data []byte) *Document {
	t.Helper()
	d, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return d
}

func reopen(t *testing.T, d *Document) *Document {
	t.Helper()
	data, err := d.Bytes()
	require.NoError(t, err)
	return readBytes(t, data)
}

func partText(t *testing.T, d *Document, name string) string {
	t.Helper()
	data, err := d.Bytes()
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			var buf bytes.Buffer
			_, err = buf.ReadFrom(rc)
			require.NoError(t, err)
			return buf.String()
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

const splitRunParagraph = `<w:p w:rsidR="00A1"><w:pPr><w:jc w:val="center"/></w:pPr>` +
	`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Hello {{</w:t></w:r>` +
	`<w:r><w:t>A}} world</w:t></w:r></w:p>`

const untouchedParagraph = `<w:p><w:r><w:rPr><w:i/></w:rPr><w:t>Keep me &amp; my runs</w:t></w:r></w:p>`

func TestParagraphTextSpansRuns(t *testing.T) {
	d := readBytes(t, buildPackage(t, wrapBody(splitRunParagraph+untouchedParagraph), ""))

	require.Len(t, d.Paragraphs(), 2)
	assert.Equal(t, "Hello {{A}} world", d.Paragraphs()[0].Text())
	assert.Equal(t, "Keep me & my runs", d.Paragraphs()[1].Text())
}

func TestParagraphSetTextKeepsPropertiesAndUntouchedXML(t *testing.T) {
	d := readBytes(t, buildPackage(t, wrapBody(splitRunParagraph+untouchedParagraph), ""))

	p := d.Paragraphs()[0]
	p.SetText(strings.ReplaceAll(p.Text(), "{{A}}", "Bank X"))

	main := partText(t, d, defaultMainPart)
	assert.Contains(t, main, `<w:p w:rsidR="00A1"><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t xml:space="preserve">Hello Bank X world</w:t></w:r></w:p>`)
	assert.Contains(t, main, untouchedParagraph)
	assert.NotContains(t, main, "<w:b/>")

	again := reopen(t, d)
	assert.Equal(t, "Hello Bank X world", again.Paragraphs()[0].Text())
	assert.Equal(t, "Keep me & my runs", again.Paragraphs()[1].Text())
}

func TestSetTextEscapesAndMapsWhitespace(t *testing.T) {
	d := readBytes(t, buildPackage(t, wrapBody(`<w:p/>`), ""))
	d.Paragraphs()[0].SetText("A & B <C>\tnext\nline")

	again := reopen(t, d)
	require.Len(t, again.Paragraphs(), 1)
	assert.Equal(t, "A & B <C>\tnext\nline", again.Paragraphs()[0].Text())

	main := partText(t, d, defaultMainPart)
	assert.Contains(t, main, "<w:tab/>")
	assert.Contains(t, main, "<w:br/>")
	assert.Contains(t, main, "A &amp; B &lt;C&gt;")
}

func TestHyperlinkRunsCountTowardsText(t *testing.T) {
	body := `<w:p><w:r><w:t>See </w:t></w:r><w:hyperlink r:id="rId9"><w:r><w:t>{{LINK}}</w:t></w:r></w:hyperlink></w:p>`
	d := readBytes(t, buildPackage(t, wrapBody(body), ""))
	assert.Equal(t, "See {{LINK}}", d.Paragraphs()[0].Text())
}

const tableXML = `<w:tbl><w:tblPr/><w:tr>` +
	`<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr>` +
	`<w:p><w:pPr><w:jc w:val="right"/></w:pPr><w:r><w:t>{{B}}</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>second line</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>static</w:t></w:r></w:p></w:tc>` +
	`</w:tr></w:tbl>`

func TestTableCells(t *testing.T) {
	d := readBytes(t, buildPackage(t, wrapBody(`<w:p><w:r><w:t>intro</w:t></w:r></w:p>`+tableXML), ""))

	require.Len(t, d.Tables(), 1)
	row := d.Tables()[0].Rows[0]
	require.Len(t, row.Cells, 2)
	assert.Equal(t, "{{B}}\nsecond line", row.Cells[0].Text())
	assert.Equal(t, "static", row.Cells[1].Text())
	assert.Equal(t, "intro", d.PlainText(), "tables are excluded from plain text")

	row.Cells[0].SetText("Jane Doe\nsecond line")
	require.Len(t, row.Cells[0].Paragraphs(), 1)

	main := partText(t, d, defaultMainPart)
	assert.Contains(t, main, `<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr><w:p><w:pPr><w:jc w:val="right"/></w:pPr>`)
	assert.Contains(t, main, `<w:tc><w:p><w:r><w:t>static</w:t></w:r></w:p></w:tc>`)

	again := reopen(t, d)
	cell := again.Tables()[0].Rows[0].Cells[0]
	require.Len(t, cell.Paragraphs(), 1)
	assert.Equal(t, "Jane Doe\nsecond line", cell.Text())
}

func TestAppendHeadingAndParagraph(t *testing.T) {
	styles := xml.Header + `<w:styles ` + testNS + `><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`
	d := readBytes(t, buildPackage(t, wrapBody(splitRunParagraph), styles))

	h, err := d.AddHeading("AI风险评估结论", 1)
	require.NoError(t, err)
	assert.Equal(t, "Heading1", h.Style())
	d.AddParagraph("Risk is moderate.")

	_, err = d.AddHeading("bad", 0)
	assert.Error(t, err)

	again := reopen(t, d)
	paras := again.Paragraphs()
	require.Len(t, paras, 3)
	assert.Equal(t, "AI风险评估结论", paras[1].Text())
	assert.Equal(t, "Heading1", paras[1].Style())
	assert.Equal(t, "Risk is moderate.", paras[2].Text())

	main := partText(t, again, defaultMainPart)
	assert.True(t, strings.Index(main, "Risk is moderate.") < strings.Index(main, "<w:sectPr>"), "content goes before the section properties")

	stylesXML := partText(t, again, "word/styles.xml")
	assert.Contains(t, stylesXML, `w:styleId="Heading1"`)
	assert.Contains(t, stylesXML, `<w:outlineLvl w:val="0"/>`)
}

func TestHeadingUsesLocalizedStyleByName(t *testing.T) {
	styles := xml.Header + `<w:styles ` + testNS + `>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="a"><w:name w:val="Normal"/></w:style>` +
		`<w:style w:type="paragraph" w:styleId="1"><w:name w:val="heading 1"/></w:style></w:styles>`
	d := readBytes(t, buildPackage(t, wrapBody(""), styles))

	h, err := d.AddHeading("结论", 1)
	require.NoError(t, err)
	assert.Equal(t, "1", h.Style())
	assert.NotContains(t, partText(t, d, "word/styles.xml"), "Heading1")
}

func TestSetDefaultFontRewritesNormalStyle(t *testing.T) {
	styles := xml.Header + `<w:styles ` + testNS + `>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/>` +
		`<w:rPr><w:rFonts w:asciiTheme="minorHAnsi"/><w:kern w:val="2"/><w:sz w:val="21"/><w:lang w:val="en-US"/></w:rPr>` +
		`</w:style></w:styles>`
	d := readBytes(t, buildPackage(t, wrapBody(""), styles))

	require.NoError(t, d.SetDefaultFont("仿宋_GB2312", 32))

	family, size, ok := d.DefaultFont()
	require.True(t, ok)
	assert.Equal(t, "仿宋_GB2312", family)
	assert.Equal(t, 32, size)

	out := partText(t, d, "word/styles.xml")
	assert.NotContains(t, out, "minorHAnsi")
	assert.NotContains(t, out, `w:val="21"`)
	assert.Contains(t, out, `w:eastAsia="仿宋_GB2312"`)
	assert.Less(t, strings.Index(out, "<w:rFonts"), strings.Index(out, "<w:kern"))
	assert.Less(t, strings.Index(out, "<w:sz "), strings.Index(out, "<w:lang"))
}

func TestSetDefaultFontWithoutRunProperties(t *testing.T) {
	styles := xml.Header + `<w:styles ` + testNS + `>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:tblPr/></w:style></w:styles>`
	d := readBytes(t, buildPackage(t, wrapBody(""), styles))

	require.NoError(t, d.SetDefaultFont("SimSun", 24))
	out := partText(t, d, "word/styles.xml")
	assert.Less(t, strings.Index(out, "<w:rPr>"), strings.Index(out, "<w:tblPr/>"))

	family, size, ok := reopen(t, d).DefaultFont()
	require.True(t, ok)
	assert.Equal(t, "SimSun", family)
	assert.Equal(t, 24, size)
}

func TestSetDefaultFontCreatesMissingStylesPart(t *testing.T) {
	p := &pkg{}
	p.put(contentTypesPart, []byte(xml.Header+`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/></Types>`))
	p.put(packageRelsPart, []byte(blankPackageRels))
	p.put(defaultMainPart, []byte(wrapBody(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`)))
	var buf bytes.Buffer
	require.NoError(t, p.write(&buf, nil))
	d := readBytes(t, buf.Bytes())

	require.NoError(t, d.SetDefaultFont("SimSun", 28))

	again := reopen(t, d)
	family, size, ok := again.DefaultFont()
	require.True(t, ok)
	assert.Equal(t, "SimSun", family)
	assert.Equal(t, 28, size)
	assert.Contains(t, partText(t, again, contentTypesPart), `PartName="/word/styles.xml"`)
}

func TestSaveIsDeterministic(t *testing.T) {
	input := buildPackage(t, wrapBody(splitRunParagraph+tableXML), xml.Header+`<w:styles `+testNS+`/>`)

	render := func() []byte {
		d := readBytes(t, input)
		d.Paragraphs()[0].SetText("Hello Bank X world")
		d.Tables()[0].Rows[0].Cells[0].SetText("Jane Doe")
		require.NoError(t, d.SetDefaultFont("仿宋_GB2312", 32))
		data, err := d.Bytes()
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, render(), render())
}

func TestUntouchedDocumentRoundTrips(t *testing.T) {
	input := buildPackage(t, wrapBody(splitRunParagraph+tableXML), "")
	d := readBytes(t, input)
	out, err := d.Bytes()
	require.NoError(t, err)
	assert.Equal(t, partText(t, readBytes(t, input), defaultMainPart), partText(t, readBytes(t, out), defaultMainPart))
}

func TestNewDocumentWithTable(t *testing.T) {
	d := New()
	d.AddParagraph("Placeholders")
	table := d.AddTable([][]string{{"Token", "Cell"}, {"{{A}}", "D2"}})
	table.Rows[1].Cells[1].SetText("D3")

	path := filepath.Join(t.TempDir(), "blank.docx")
	require.NoError(t, d.Save(path))

	again, err := Open(path)
	require.NoError(t, err)
	require.Len(t, again.Tables(), 1)
	rows := again.Tables()[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "{{A}}", rows[1].Cells[0].Text())
	assert.Equal(t, "D3", rows[1].Cells[1].Text())
	assert.Equal(t, "Placeholders", again.PlainText())
}

func TestReadRejectsInvalidPackages(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a zip")), 9)
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("hello.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.Error(t, err)

	_, err = ReadFrom(bytes.NewReader(buildPackage(t, xml.Header+`<w:document `+testNS+`/>`, "")))
	assert.Error(t, err, "document without body")
}
