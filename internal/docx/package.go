package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	contentTypeStyles     = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"

	contentTypesPart = "[Content_Types].xml"
	packageRelsPart  = "_rels/.rels"
	defaultMainPart  = "word/document.xml"
)

// part is one zip entry of the package, kept in archive order.
type part struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

type pkg struct {
	parts []*part
}

func readPackage(r io.ReaderAt, size int64) (*pkg, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("not a zip archive: %w", err)
	}
	p := &pkg{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		method := f.Method
		if method != zip.Store {
			method = zip.Deflate
		}
		p.parts = append(p.parts, &part{
			name:     f.Name,
			method:   method,
			modified: f.Modified,
			data:     data,
		})
	}
	return p, nil
}

func (p *pkg) get(name string) *part {
	for _, pt := range p.parts {
		if pt.name == name {
			return pt
		}
	}
	return nil
}

func (p *pkg) put(name string, data []byte) {
	if pt := p.get(name); pt != nil {
		pt.data = data
		return
	}
	p.parts = append(p.parts, &part{name: name, method: zip.Deflate, data: data})
}

// write emits the package. Entries keep their order and timestamps, so the
// same input always produces the same bytes.
func (p *pkg) write(w io.Writer, override map[string][]byte) error {
	zw := zip.NewWriter(w)
	for _, pt := range p.parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     pt.name,
			Method:   pt.method,
			Modified: pt.modified,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", pt.name, err)
		}
		data := pt.data
		if o, ok := override[pt.name]; ok {
			data = o
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", pt.name, err)
		}
	}
	return zw.Close()
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Rels    []relationship `xml:"Relationship"`
}

func relsPartFor(partName string) string {
	dir, file := path.Split(partName)
	return dir + "_rels/" + file + ".rels"
}

// relTarget finds the first relationship of relType declared by source and
// returns its target as a package part name.
func (p *pkg) relTarget(source, relType string) (string, bool) {
	relsName := packageRelsPart
	if source != "" {
		relsName = relsPartFor(source)
	}
	pt := p.get(relsName)
	if pt == nil {
		return "", false
	}
	var rels relationships
	if err := xml.Unmarshal(pt.data, &rels); err != nil {
		return "", false
	}
	for _, r := range rels.Rels {
		if r.Type != relType || strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		if strings.HasPrefix(r.Target, "/") {
			return strings.TrimPrefix(r.Target, "/"), true
		}
		return path.Clean(path.Join(path.Dir(source), r.Target)), true
	}
	return "", false
}

// mainPart locates the main document part.
func (p *pkg) mainPart() (string, error) {
	name, ok := p.relTarget("", relTypeOfficeDocument)
	if !ok {
		name = defaultMainPart
	}
	if p.get(name) == nil {
		return "", fmt.Errorf("package has no main document part %s", name)
	}
	return name, nil
}

// ensureStylesPart returns the styles part name for the main part, creating
// an empty styles part with its relationship and content type when missing.
func (p *pkg) ensureStylesPart(mainName string) (string, error) {
	if name, ok := p.relTarget(mainName, relTypeStyles); ok && p.get(name) != nil {
		return name, nil
	}

	name := path.Join(path.Dir(mainName), "styles.xml")
	p.put(name, []byte(xml.Header+`<w:styles xmlns:w="`+nsWordTransitional+`"></w:styles>`))

	relsName := relsPartFor(mainName)
	rels := p.get(relsName)
	if rels == nil {
		p.put(relsName, []byte(xml.Header+`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`))
		rels = p.get(relsName)
	}
	entry := fmt.Sprintf(`<Relationship Id="rIdDdrStyles" Type="%s" Target="%s"/>`, relTypeStyles, path.Base(name))
	data, err := insertBeforeClose(rels.data, "Relationships", entry)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", relsName, err)
	}
	rels.data = data

	ct := p.get(contentTypesPart)
	if ct == nil {
		return "", fmt.Errorf("package has no %s", contentTypesPart)
	}
	override := fmt.Sprintf(`<Override PartName="/%s" ContentType="%s"/>`, name, contentTypeStyles)
	data, err = insertBeforeClose(ct.data, "Types", override)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", contentTypesPart, err)
	}
	ct.data = data
	return name, nil
}

// insertBeforeClose inserts text right before the end tag of the document
// element, which must have the given local name.
func insertBeforeClose(data []byte, rootLocal, text string) ([]byte, error) {
	doc, err := scanXML(data)
	if err != nil {
		return nil, err
	}
	root := doc.root()
	if root == nil || root.local != rootLocal {
		return nil, fmt.Errorf("expected <%s> document element", rootLocal)
	}
	if root.selfClosing() {
		closeTag := "</" + qname(root.prefix, root.local) + ">"
		return splice(data, []edit{{start: root.start, end: root.end, text: openTag(data, root) + text + closeTag}}), nil
	}
	return splice(data, []edit{{start: root.contentEnd, end: root.contentEnd, text: text}}), nil
}

func readAllAt(r io.Reader) (*bytes.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
