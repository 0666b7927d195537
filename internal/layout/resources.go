// Package layout turns a parsed document plus its stylesheets into a box
// tree and a culled render tree, and discovers the subresources a page
// references (images, stylesheets, scripts).
package layout

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/geeknik/citadel-browser/internal/doctree"
)

// ResourceKind classifies a discovered subresource reference.
type ResourceKind string

const (
	ResourceImage      ResourceKind = "image"
	ResourceStylesheet ResourceKind = "stylesheet"
	ResourceScript     ResourceKind = "script"
	ResourceFrame      ResourceKind = "frame"
)

// Resource is a single subresource reference found while walking the
// document, ready for the network package to resolve and fetch.
type Resource struct {
	Kind ResourceKind
	URL  string
}

// toHTMLNode converts a doctree.Node back to an *html.Node tree so
// goquery (which only operates on golang.org/x/net/html trees) can walk
// it for resource discovery. Security-blocked nodes never entered the
// doctree in the first place, so nothing rediscovered here bypasses the
// element/attribute filters already applied during parsing.
func toHTMLNode(n *doctree.Node) *html.Node {
	switch n.Kind {
	case doctree.KindText:
		return &html.Node{Type: html.TextNode, Data: n.Text}
	case doctree.KindComment:
		return &html.Node{Type: html.CommentNode, Data: n.Text}
	}

	hn := &html.Node{Type: html.ElementNode, Data: n.Name}
	if n.Attrs != nil {
		for _, name := range n.Attrs.Names() {
			v, _ := n.Attrs.Get(name)
			hn.Attr = append(hn.Attr, html.Attribute{Key: name, Val: v})
		}
	}
	for _, c := range n.Children {
		child := toHTMLNode(c)
		hn.AppendChild(child)
	}
	if n.Kind == doctree.KindDocument {
		hn.Type = html.DocumentNode
		hn.Data = ""
	}
	return hn
}

// DiscoverResources walks doc via goquery and returns every subresource
// reference it can find, grouped by kind (images, then stylesheets,
// scripts, frames); within each group references are in document order.
func DiscoverResources(doc *doctree.Node) []Resource {
	root := toHTMLNode(doc)
	gq := goquery.NewDocumentFromNode(root)

	var out []Resource
	gq.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, Resource{Kind: ResourceImage, URL: src})
		}
	})
	gq.Find("link[rel='stylesheet'][href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			out = append(out, Resource{Kind: ResourceStylesheet, URL: href})
		}
	})
	gq.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, Resource{Kind: ResourceScript, URL: src})
		}
	})
	gq.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			out = append(out, Resource{Kind: ResourceFrame, URL: src})
		}
	})
	return out
}
