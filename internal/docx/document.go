// Package docx reads and edits WordprocessingML (.docx) packages: paragraph
// and table-cell text, the default paragraph style, and appended headings and
// paragraphs. Parts and elements that are not edited are written back
// byte-for-byte.
package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is an opened .docx package.
type Document struct {
	pkg      *pkg
	mainName string
	data     []byte // main part as read
	tree     *node
	body     *node
	prefix   string

	paragraphs []*Paragraph
	tables     []*Table
	appended   []block
}

// block is body content added after load.
type block interface {
	render(prefix string) string
}

// Open reads the .docx file at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Read(f, info.Size())
}

// Read parses a .docx package of the given size.
func Read(r io.ReaderAt, size int64) (*Document, error) {
	p, err := readPackage(r, size)
	if err != nil {
		return nil, err
	}
	return load(p)
}

// ReadFrom parses a .docx package from a stream.
func ReadFrom(r io.Reader) (*Document, error) {
	br, err := readAllAt(r)
	if err != nil {
		return nil, err
	}
	return Read(br, br.Size())
}

func load(p *pkg) (*Document, error) {
	mainName, err := p.mainPart()
	if err != nil {
		return nil, err
	}
	data := p.get(mainName).data
	tree, err := scanXML(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", mainName, err)
	}
	root := tree.root()
	if root == nil || !root.isWord("document") {
		return nil, fmt.Errorf("%s is not a wordprocessing document", mainName)
	}
	body := root.child("body")
	if body == nil {
		return nil, fmt.Errorf("%s has no body", mainName)
	}

	d := &Document{
		pkg:      p,
		mainName: mainName,
		data:     data,
		tree:     tree,
		body:     body,
		prefix:   root.wordPrefix(),
	}
	for _, c := range body.children {
		switch {
		case c.isWord("p"):
			d.paragraphs = append(d.paragraphs, newParagraph(c))
		case c.isWord("tbl"):
			d.tables = append(d.tables, newTable(c))
		}
	}
	return d, nil
}

// Paragraphs returns the body-level paragraphs in order, including appended
// ones. Paragraphs inside tables are reached through Tables.
func (d *Document) Paragraphs() []*Paragraph {
	return d.paragraphs
}

// Tables returns the body-level tables in order.
func (d *Document) Tables() []*Table {
	return d.tables
}

// PlainText joins the text of every body-level paragraph with newlines.
// Table content is not included.
func (d *Document) PlainText() string {
	texts := make([]string, len(d.paragraphs))
	for i, p := range d.paragraphs {
		texts[i] = p.Text()
	}
	return strings.Join(texts, "\n")
}

// AddParagraph appends a paragraph with the given text at the end of the body.
func (d *Document) AddParagraph(text string) *Paragraph {
	p := &Paragraph{text: text, dirty: true}
	d.paragraphs = append(d.paragraphs, p)
	d.appended = append(d.appended, p)
	return p
}

// AddHeading appends a heading paragraph of the given outline level (1-9).
// A heading style is added to the styles part when the document lacks one.
func (d *Document) AddHeading(text string, level int) (*Paragraph, error) {
	if level < 1 || level > 9 {
		return nil, fmt.Errorf("heading level %d out of range 1-9", level)
	}
	styleID, err := d.ensureHeadingStyle(level)
	if err != nil {
		return nil, err
	}
	p := d.AddParagraph(text)
	p.style = styleID
	return p, nil
}

// AddTable appends a table whose cells hold the given texts.
func (d *Document) AddTable(rows [][]string) *Table {
	t := &Table{appended: true}
	for _, texts := range rows {
		row := &Row{}
		for _, text := range texts {
			row.Cells = append(row.Cells, &Cell{
				paragraphs: []*Paragraph{{text: text, dirty: true}},
			})
		}
		t.Rows = append(t.Rows, row)
	}
	d.tables = append(d.tables, t)
	d.appended = append(d.appended, t)
	return t
}

// mainBytes renders the main part with every pending edit applied.
func (d *Document) mainBytes() []byte {
	var edits []edit
	for _, p := range d.paragraphs {
		if e, ok := p.edit(d.data, d.prefix); ok {
			edits = append(edits, e)
		}
	}
	for _, t := range d.tables {
		for _, row := range t.Rows {
			for _, c := range row.Cells {
				edits = append(edits, c.edits(d.data, d.prefix)...)
			}
		}
	}

	if len(d.appended) > 0 {
		var buf strings.Builder
		for _, b := range d.appended {
			buf.WriteString(b.render(d.prefix))
		}
		at := d.body.contentEnd
		if n := len(d.body.children); n > 0 && d.body.children[n-1].isWord("sectPr") {
			at = d.body.children[n-1].start
		}
		if d.body.selfClosing() {
			edits = append(edits, edit{
				start: d.body.start,
				end:   d.body.end,
				text:  openTag(d.data, d.body) + buf.String() + "</" + qname(d.body.prefix, d.body.local) + ">",
			})
		} else {
			edits = append(edits, edit{start: at, end: at, text: buf.String()})
		}
	}

	if len(edits) == 0 {
		return d.data
	}
	return splice(d.data, edits)
}

// Write serializes the package to w.
func (d *Document) Write(w io.Writer) error {
	return d.pkg.write(w, map[string][]byte{d.mainName: d.mainBytes()})
}

// Bytes serializes the package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to path, replacing any existing file.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Paragraph is one w:p element.
type Paragraph struct {
	n     *node // nil for appended paragraphs
	text  string
	style string
	dirty bool
}

func newParagraph(n *node) *Paragraph {
	p := &Paragraph{n: n, text: paragraphText(n)}
	if pPr := n.child("pPr"); pPr != nil {
		if ps := pPr.child("pStyle"); ps != nil {
			p.style = ps.attr("val")
		}
	}
	return p
}

// Text returns the paragraph's aggregate run text.
func (p *Paragraph) Text() string {
	return p.text
}

// Style returns the paragraph style ID, or "" for the default style.
func (p *Paragraph) Style() string {
	return p.style
}

// SetText replaces the paragraph content with a single run holding text.
// Paragraph properties are kept; run-level formatting is not.
func (p *Paragraph) SetText(text string) {
	p.text = text
	p.dirty = true
}

func (p *Paragraph) edit(data []byte, prefix string) (edit, bool) {
	if p.n == nil || !p.dirty {
		return edit{}, false
	}
	return edit{start: p.n.start, end: p.n.end, text: p.renderFrom(data, prefix)}, true
}

// renderFrom rebuilds a parsed paragraph from its original start tag and
// properties plus the current text.
func (p *Paragraph) renderFrom(data []byte, prefix string) string {
	open := openTag(data, p.n)
	var props string
	if pPr := p.n.child("pPr"); pPr != nil {
		props = string(data[pPr.start:pPr.end])
	}
	return open + props + renderRun(prefix, p.text) + "</" + qname(p.n.prefix, p.n.local) + ">"
}

func (p *Paragraph) render(prefix string) string {
	var buf strings.Builder
	buf.WriteString("<" + qname(prefix, "p") + ">")
	if p.style != "" {
		buf.WriteString("<" + qname(prefix, "pPr") + ">")
		buf.WriteString("<" + qname(prefix, "pStyle") + " " + qname(prefix, "val") + `="` + escapeAttr(p.style) + `"/>`)
		buf.WriteString("</" + qname(prefix, "pPr") + ">")
	}
	buf.WriteString(renderRun(prefix, p.text))
	buf.WriteString("</" + qname(prefix, "p") + ">")
	return buf.String()
}

// Table is one w:tbl element.
type Table struct {
	Rows     []*Row
	appended bool
}

// Row is one w:tr element.
type Row struct {
	Cells []*Cell
}

func newTable(n *node) *Table {
	t := &Table{}
	for _, tr := range n.childrenNamed("tr") {
		row := &Row{}
		for _, tc := range tr.childrenNamed("tc") {
			c := &Cell{n: tc}
			for _, pn := range tc.childrenNamed("p") {
				c.paragraphs = append(c.paragraphs, newParagraph(pn))
			}
			row.Cells = append(row.Cells, c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) render(prefix string) string {
	q := func(local string) string { return qname(prefix, local) }
	var buf strings.Builder
	buf.WriteString("<" + q("tbl") + "><" + q("tblPr") + ">")
	buf.WriteString("<" + q("tblW") + " " + q("w") + `="0" ` + q("type") + `="auto"/>`)
	buf.WriteString("<" + q("tblBorders") + ">")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		buf.WriteString("<" + q(side) + " " + q("val") + `="single" ` + q("sz") + `="4" ` + q("space") + `="0" ` + q("color") + `="auto"/>`)
	}
	buf.WriteString("</" + q("tblBorders") + "></" + q("tblPr") + ">")
	cols := 0
	for _, row := range t.Rows {
		if len(row.Cells) > cols {
			cols = len(row.Cells)
		}
	}
	buf.WriteString("<" + q("tblGrid") + ">")
	for i := 0; i < cols; i++ {
		buf.WriteString("<" + q("gridCol") + "/>")
	}
	buf.WriteString("</" + q("tblGrid") + ">")
	for _, row := range t.Rows {
		buf.WriteString("<" + q("tr") + ">")
		for _, c := range row.Cells {
			buf.WriteString("<" + q("tc") + "><" + q("tcPr") + "><" + q("tcW") + " " + q("w") + `="0" ` + q("type") + `="auto"/></` + q("tcPr") + ">")
			for _, p := range c.Paragraphs() {
				buf.WriteString(p.render(prefix))
			}
			buf.WriteString("</" + q("tc") + ">")
		}
		buf.WriteString("</" + q("tr") + ">")
	}
	buf.WriteString("</" + q("tbl") + ">")
	return buf.String()
}

// Cell is one w:tc element.
type Cell struct {
	n          *node // nil for appended cells
	paragraphs []*Paragraph
	dirty      bool
}

// Paragraphs returns the cell's paragraphs. After SetText the cell holds a
// single paragraph.
func (c *Cell) Paragraphs() []*Paragraph {
	return c.paragraphs
}

// Text joins the cell's paragraph texts with newlines.
func (c *Cell) Text() string {
	texts := make([]string, len(c.paragraphs))
	for i, p := range c.paragraphs {
		texts[i] = p.Text()
	}
	return strings.Join(texts, "\n")
}

// SetText replaces the whole cell content with one paragraph holding text.
// Cell properties and the first paragraph's properties are kept.
func (c *Cell) SetText(text string) {
	first := &Paragraph{text: text, dirty: true}
	if len(c.paragraphs) > 0 {
		first.n = c.paragraphs[0].n
		first.style = c.paragraphs[0].style
	}
	c.paragraphs = []*Paragraph{first}
	c.dirty = true
}

func (c *Cell) edits(data []byte, prefix string) []edit {
	if c.n == nil {
		return nil
	}
	if !c.dirty {
		var out []edit
		for _, p := range c.paragraphs {
			if e, ok := p.edit(data, prefix); ok {
				out = append(out, e)
			}
		}
		return out
	}

	var content string
	if first := c.paragraphs[0]; first.n != nil {
		content = first.renderFrom(data, prefix)
	} else {
		content = first.render(prefix)
	}
	if c.n.selfClosing() {
		return []edit{{start: c.n.start, end: c.n.end, text: openTag(data, c.n) + content + "</" + qname(c.n.prefix, c.n.local) + ">"}}
	}
	from := c.n.contentStart
	if tcPr := c.n.child("tcPr"); tcPr != nil {
		from = tcPr.end
	}
	return []edit{{start: from, end: c.n.contentEnd, text: content}}
}

// openTag returns the element's start tag, turning a self-closing tag into
// an opening one.
func openTag(data []byte, n *node) string {
	tag := string(data[n.start:n.contentStart])
	if !n.selfClosing() {
		return tag
	}
	tag = strings.TrimSuffix(strings.TrimSpace(tag), "/>")
	return strings.TrimRight(tag, " \t\r\n") + ">"
}

// paragraphText concatenates the text of the paragraph's runs, including runs
// nested in hyperlinks, insertions and smart tags.
func paragraphText(p *node) string {
	var buf strings.Builder
	var walk func(n *node)
	walk = func(n *node) {
		for _, c := range n.children {
			switch {
			case c.isWord("r"):
				runText(&buf, c)
			case c.isWord("hyperlink"), c.isWord("ins"), c.isWord("smartTag"):
				walk(c)
			}
		}
	}
	walk(p)
	return buf.String()
}

func runText(buf *strings.Builder, r *node) {
	for _, c := range r.children {
		switch {
		case c.isWord("t"):
			buf.WriteString(c.text.String())
		case c.isWord("tab"):
			buf.WriteByte('\t')
		case c.isWord("br"), c.isWord("cr"):
			buf.WriteByte('\n')
		}
	}
}

// renderRun emits one run for text, mapping tabs and newlines to w:tab and
// w:br the way Word stores them.
func renderRun(prefix, text string) string {
	q := func(local string) string { return qname(prefix, local) }
	var buf strings.Builder
	buf.WriteString("<" + q("r") + ">")
	var seg strings.Builder
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		buf.WriteString("<" + q("t") + ` xml:space="preserve">`)
		xml.EscapeText(&buf, []byte(seg.String()))
		buf.WriteString("</" + q("t") + ">")
		seg.Reset()
	}
	for _, r := range text {
		switch r {
		case '\t':
			flush()
			buf.WriteString("<" + q("tab") + "/>")
		case '\n':
			flush()
			buf.WriteString("<" + q("br") + "/>")
		case '\r':
		default:
			seg.WriteRune(r)
		}
	}
	flush()
	buf.WriteString("</" + q("r") + ">")
	return buf.String()
}

func escapeAttr(s string) string {
	var buf strings.Builder
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
