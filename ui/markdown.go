package ui

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderNarrative turns the model's markdown into HTML for the preview.
// Raw HTML in the narrative is dropped, never passed through.
func renderNarrative(text string) template.HTML {
	if text == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML | html.Safelink,
	})
	out := markdown.ToHTML([]byte(text), p, renderer)
	return template.HTML(out)
}
