package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"
)

const (
	nsWordTransitional = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsWordStrict       = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

// node is one element of a scanned XML part. Offsets index the part's bytes:
// [start, contentStart) is the start tag, [contentStart, contentEnd) the
// content and [contentEnd, end) the end tag (empty for self-closing tags).
type node struct {
	space  string // resolved namespace URI
	local  string
	prefix string
	attrs  []xml.Attr
	ns     map[string]string

	start, contentStart, contentEnd, end int

	parent   *node
	children []*node
	text     strings.Builder
}

func (n *node) isWord(local string) bool {
	return n.local == local && (n.space == nsWordTransitional || n.space == nsWordStrict)
}

func (n *node) selfClosing() bool {
	return n.contentStart == n.end
}

// attr returns the value of the attribute in the word namespace (or
// unqualified) with the given local name.
func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == "" {
			return a.Value
		}
		uri := n.ns[a.Name.Space]
		if uri == nsWordTransitional || uri == nsWordStrict {
			return a.Value
		}
	}
	return ""
}

func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.isWord(local) {
			return c
		}
	}
	return nil
}

func (n *node) childrenNamed(local string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.isWord(local) {
			out = append(out, c)
		}
	}
	return out
}

// scanXML parses data into an element tree that records byte offsets, so
// callers can splice replacements into the original bytes without
// re-serializing anything they did not touch.
func scanXML(data []byte) (*node, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	doc := &node{ns: map[string]string{"xml": "http://www.w3.org/XML/1998/namespace"}, end: len(data)}
	stack := []*node{doc}

	for {
		pos := int(d.InputOffset())
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		after := int(d.InputOffset())
		top := stack[len(stack)-1]

		switch t := tok.(type) {
		case xml.StartElement:
			ns := top.ns
			copied := false
			for _, a := range t.Attr {
				var prefix string
				switch {
				case a.Name.Space == "xmlns":
					prefix = a.Name.Local
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					prefix = ""
				default:
					continue
				}
				if !copied {
					ns = copyMap(top.ns)
					copied = true
				}
				ns[prefix] = a.Value
			}
			n := &node{
				local:        t.Name.Local,
				prefix:       t.Name.Space,
				attrs:        append([]xml.Attr(nil), t.Attr...),
				ns:           ns,
				start:        pos,
				contentStart: after,
				parent:       top,
			}
			n.space = ns[t.Name.Space]
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, io.ErrUnexpectedEOF
			}
			top.contentEnd = pos
			top.end = after
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.text.Write(t)
		}
	}
	if len(stack) != 1 {
		return nil, io.ErrUnexpectedEOF
	}
	return doc, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// root returns the document element of a scanned part.
func (n *node) root() *node {
	for _, c := range n.children {
		if c.local != "" {
			return c
		}
	}
	return nil
}

// wordPrefix returns the prefix bound to the wordprocessingml namespace at n.
func (n *node) wordPrefix() string {
	if uri := n.ns["w"]; uri == nsWordTransitional || uri == nsWordStrict {
		return "w"
	}
	var prefixes []string
	for p, uri := range n.ns {
		if p != "" && (uri == nsWordTransitional || uri == nsWordStrict) {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		if uri := n.ns[""]; uri == nsWordTransitional || uri == nsWordStrict {
			return ""
		}
		return "w"
	}
	sort.Strings(prefixes)
	return prefixes[0]
}

// qname joins prefix and local name.
func qname(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// splice applies non-overlapping replacements to data. Edits nested inside an
// earlier edit are dropped.
func splice(data []byte, edits []edit) []byte {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var buf bytes.Buffer
	buf.Grow(len(data))
	cursor := 0
	for _, e := range edits {
		if e.start < cursor {
			continue
		}
		buf.Write(data[cursor:e.start])
		buf.WriteString(e.text)
		cursor = e.end
	}
	buf.Write(data[cursor:])
	return buf.Bytes()
}

type edit struct {
	start, end int
	text       string
}
