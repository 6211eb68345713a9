package docx

import (
	"fmt"
	"strings"
)

// rPr children that must follow sz/szCs in schema order.
var afterSize = map[string]bool{
	"highlight": true, "u": true, "effect": true, "bdr": true, "shd": true,
	"fitText": true, "vertAlign": true, "rtl": true, "cs": true, "em": true,
	"lang": true, "eastAsianLayout": true, "specVanish": true, "oMath": true,
}

// style children that must follow rPr in schema order.
var afterRunProps = map[string]bool{
	"tblPr": true, "trPr": true, "tcPr": true, "tblStylePr": true,
}

// SetDefaultFont sets the font family and size (in half-points) of the
// Normal paragraph style, replacing whatever the template defined for it.
// All four font slots are set so East Asian text picks up the family too.
func (d *Document) SetDefaultFont(family string, halfPoints int) error {
	if family == "" || halfPoints <= 0 {
		return fmt.Errorf("invalid default font %q at %d half-points", family, halfPoints)
	}
	name, err := d.pkg.ensureStylesPart(d.mainName)
	if err != nil {
		return err
	}
	pt := d.pkg.get(name)
	data, err := setStyleFont(pt.data, family, halfPoints)
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	pt.data = data
	return nil
}

// DefaultFont reports the font family and size of the Normal style, if set.
func (d *Document) DefaultFont() (family string, halfPoints int, ok bool) {
	name, found := d.pkg.relTarget(d.mainName, relTypeStyles)
	if !found || d.pkg.get(name) == nil {
		return "", 0, false
	}
	tree, err := scanXML(d.pkg.get(name).data)
	if err != nil {
		return "", 0, false
	}
	style := findStyle(tree.root(), "Normal", "Normal")
	if style == nil {
		return "", 0, false
	}
	rPr := style.child("rPr")
	if rPr == nil {
		return "", 0, false
	}
	if f := rPr.child("rFonts"); f != nil {
		family = f.attr("ascii")
	}
	if sz := rPr.child("sz"); sz != nil {
		fmt.Sscanf(sz.attr("val"), "%d", &halfPoints)
	}
	return family, halfPoints, family != "" || halfPoints > 0
}

func setStyleFont(data []byte, family string, halfPoints int) ([]byte, error) {
	tree, err := scanXML(data)
	if err != nil {
		return nil, err
	}
	root := tree.root()
	if root == nil || !root.isWord("styles") {
		return nil, fmt.Errorf("styles part has no styles element")
	}
	prefix := root.wordPrefix()
	q := func(local string) string { return qname(prefix, local) }

	fonts := fmt.Sprintf(`<%s %s="%s" %s="%s" %s="%s" %s="%s"/>`,
		q("rFonts"), q("ascii"), escapeAttr(family), q("hAnsi"), escapeAttr(family),
		q("eastAsia"), escapeAttr(family), q("cs"), escapeAttr(family))
	size := fmt.Sprintf(`<%s %s="%d"/><%s %s="%d"/>`, q("sz"), q("val"), halfPoints, q("szCs"), q("val"), halfPoints)

	style := findStyle(root, "Normal", "Normal")
	if style == nil {
		def := fmt.Sprintf(`<%s %s="paragraph" %s="1" %s="Normal"><%s %s="Normal"/><%s/><%s>%s%s</%s></%s>`,
			q("style"), q("type"), q("default"), q("styleId"), q("name"), q("val"), q("qFormat"),
			q("rPr"), fonts, size, q("rPr"), q("style"))
		return insertBeforeClose(data, root.local, def)
	}

	rPr := style.child("rPr")
	if rPr == nil {
		props := "<" + q("rPr") + ">" + fonts + size + "</" + q("rPr") + ">"
		return insertChild(data, style, props, afterRunProps), nil
	}

	// Rebuild the run properties keeping everything but fonts and sizes.
	var kept []*node
	for _, c := range rPr.children {
		if c.isWord("rFonts") || c.isWord("sz") || c.isWord("szCs") {
			continue
		}
		kept = append(kept, c)
	}
	var buf strings.Builder
	fontsWritten, sizeWritten := false, false
	for _, c := range kept {
		if !fontsWritten && !c.isWord("rStyle") {
			buf.WriteString(fonts)
			fontsWritten = true
		}
		if !sizeWritten && afterSize[c.local] {
			buf.WriteString(size)
			sizeWritten = true
		}
		buf.Write(data[c.start:c.end])
	}
	if !fontsWritten {
		buf.WriteString(fonts)
	}
	if !sizeWritten {
		buf.WriteString(size)
	}
	if rPr.selfClosing() {
		return splice(data, []edit{{start: rPr.start, end: rPr.end, text: openTag(data, rPr) + buf.String() + "</" + qname(rPr.prefix, rPr.local) + ">"}}), nil
	}
	return splice(data, []edit{{start: rPr.contentStart, end: rPr.contentEnd, text: buf.String()}}), nil
}

// ensureHeadingStyle returns the style ID of the heading style for level,
// adding a definition to the styles part when the document has none.
func (d *Document) ensureHeadingStyle(level int) (string, error) {
	name, err := d.pkg.ensureStylesPart(d.mainName)
	if err != nil {
		return "", err
	}
	pt := d.pkg.get(name)
	tree, err := scanXML(pt.data)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	root := tree.root()
	if root == nil || !root.isWord("styles") {
		return "", fmt.Errorf("%s has no styles element", name)
	}

	styleID := fmt.Sprintf("Heading%d", level)
	if style := findStyle(root, fmt.Sprintf("heading %d", level), styleID); style != nil {
		if id := style.attr("styleId"); id != "" {
			return id, nil
		}
	}

	prefix := root.wordPrefix()
	q := func(local string) string { return qname(prefix, local) }
	sz := 40 - 4*(level-1)
	if sz < 24 {
		sz = 24
	}
	def := fmt.Sprintf(`<%s %s="paragraph" %s="%s">`+
		`<%s %s="heading %d"/><%s %s="Normal"/><%s %s="Normal"/><%s %s="9"/><%s/>`+
		`<%s><%s/><%s %s="240" %s="120"/><%s %s="%d"/></%s>`+
		`<%s><%s/><%s %s="%d"/><%s %s="%d"/></%s></%s>`,
		q("style"), q("type"), q("styleId"), styleID,
		q("name"), q("val"), level, q("basedOn"), q("val"), q("next"), q("val"), q("uiPriority"), q("val"), q("qFormat"),
		q("pPr"), q("keepNext"), q("spacing"), q("before"), q("after"), q("outlineLvl"), q("val"), level-1, q("pPr"),
		q("rPr"), q("b"), q("sz"), q("val"), sz, q("szCs"), q("val"), sz, q("rPr"), q("style"))
	data, err := insertBeforeClose(pt.data, root.local, def)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", name, err)
	}
	pt.data = data
	return styleID, nil
}

// findStyle looks up a paragraph style by display name (case-insensitive),
// then by style ID.
func findStyle(root *node, displayName, styleID string) *node {
	if root == nil {
		return nil
	}
	var byID *node
	for _, s := range root.childrenNamed("style") {
		if t := s.attr("type"); t != "" && t != "paragraph" {
			continue
		}
		if n := s.child("name"); n != nil && strings.EqualFold(n.attr("val"), displayName) {
			return s
		}
		if byID == nil && s.attr("styleId") == styleID {
			byID = s
		}
	}
	return byID
}

// insertChild inserts text into parent before the first child whose local
// name is in before, or at the end of its content.
func insertChild(data []byte, parent *node, text string, before map[string]bool) []byte {
	if parent.selfClosing() {
		return splice(data, []edit{{start: parent.start, end: parent.end, text: openTag(data, parent) + text + "</" + qname(parent.prefix, parent.local) + ">"}})
	}
	at := parent.contentEnd
	for _, c := range parent.children {
		if before[c.local] {
			at = c.start
			break
		}
	}
	return splice(data, []edit{{start: at, end: at, text: text}})
}
