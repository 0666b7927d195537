package htmlparser

import (
	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/style"
)

// LinkedStylesheet is a <link rel="stylesheet"> discovered during
// parsing, left for the caller to fetch via the Network collaborator
// (spec §4.1 "fetched via the external Network contract").
type LinkedStylesheet struct {
	Href string
}

// InlineStyles returns the text content of every <style> element in
// document order.
func InlineStyles(doc *doctree.Node) []string {
	var out []string
	for _, styleEl := range doc.FindAll("style") {
		out = append(out, doctree.ExtractText(styleEl))
	}
	return out
}

// LinkedStylesheets returns every <link rel="stylesheet" href="..."> in
// document order.
func LinkedStylesheets(doc *doctree.Node) []LinkedStylesheet {
	var out []LinkedStylesheet
	for _, linkEl := range doc.FindAll("link") {
		rel, _ := linkEl.Attrs.Get("rel")
		if rel != "stylesheet" {
			continue
		}
		href, ok := linkEl.Attrs.Get("href")
		if !ok || href == "" {
			continue
		}
		out = append(out, LinkedStylesheet{Href: href})
	}
	return out
}

// ParseInlineStylesheets parses every <style> block into a merged
// Stylesheet, dropping blocks that exceed maxBytes individually rather
// than failing the whole page.
func ParseInlineStylesheets(doc *doctree.Node, maxBytes int) *style.Stylesheet {
	merged := &style.Stylesheet{}
	for _, src := range InlineStyles(doc) {
		sheet, err := style.Parse(src, style.OriginAuthor, maxBytes)
		if err != nil {
			continue
		}
		merged.Rules = append(merged.Rules, sheet.Rules...)
		merged.DeclaredSize += sheet.DeclaredSize
	}
	return merged
}
