package layout

import (
	"golang.org/x/net/html"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/style"
)

// Rect is an axis-aligned box in layout-space pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Intersects reports whether r and o overlap (touching edges do not
// count as overlap).
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Expand grows r by margin on every side, used to build the "expanded
// viewport" for culling (spec §4.5).
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		X: r.X - margin, Y: r.Y - margin,
		Width: r.Width + 2*margin, Height: r.Height + 2*margin,
	}
}

// Box is one node's layout box: its computed rectangle, the doctree node
// it was built from, and whether the viewport-culling pass elided it
// from rendered output.
type Box struct {
	Node     *doctree.Node
	Rect     Rect
	Culled   bool
	Children []*Box
}

// defaultLineHeight is the per-text-line box height used by the
// simplified block-flow layout below; this is not a CSS2.1 line-box
// implementation, only enough vertical flow to drive fingerprinting and
// culling deterministically.
const defaultLineHeight = 18.0

// Tree is the root of a computed box tree plus the stylesheet it was
// built against, carrying everything the cache fingerprint needs.
type Tree struct {
	Root  *Box
	Sheet *style.Stylesheet
}

// Build computes a simplified block-flow box tree for doc: every
// block-level element stacks vertically at the viewport's width; inline
// content does not reflow line-by-line. This is intentionally not a
// CSS2.1-conformant flow (spec's explicit non-goal excludes full
// conformance) but is enough to drive caching, culling, and the render
// emit path with deterministic geometry.
func Build(doc *doctree.Node, sheet *style.Stylesheet, viewportWidth float64) *Tree {
	cursorY := 0.0
	var walk func(n *doctree.Node) *Box
	walk = func(n *doctree.Node) *Box {
		b := &Box{Node: n}
		switch n.Kind {
		case doctree.KindText:
			b.Rect = Rect{X: 0, Y: cursorY, Width: viewportWidth, Height: defaultLineHeight}
			cursorY += defaultLineHeight
			return b
		case doctree.KindComment:
			return nil
		}

		startY := cursorY
		for _, c := range n.Children {
			if cb := walk(c); cb != nil {
				b.Children = append(b.Children, cb)
			}
		}
		b.Rect = Rect{X: 0, Y: startY, Width: viewportWidth, Height: cursorY - startY}
		return b
	}
	root := walk(doc)
	return &Tree{Root: root, Sheet: sheet}
}

// Cull marks every box whose rectangle does not intersect the expanded
// viewport as culled, without removing it from the tree (spec §4.5:
// "culled elements are not evicted from the tree -- only their rendered
// output is elided").
func Cull(t *Tree, viewport Rect, margin float64) {
	expanded := viewport.Expand(margin)
	var walk func(b *Box)
	walk = func(b *Box) {
		if b == nil {
			return
		}
		b.Culled = !b.Rect.Intersects(expanded)
		for _, c := range b.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// RenderNode is one emitted, non-culled drawable produced by Emit.
type RenderNode struct {
	Rect Rect
	Text string
	Tag  string
}

// Emit walks the culled box tree and returns the render tree: one
// RenderNode per non-culled box carrying visible content, in document
// order. Emit does not resolve style rules; MatchRules does that
// separately for a single node.
func Emit(t *Tree) []RenderNode {
	var out []RenderNode
	var walk func(b *Box)
	walk = func(b *Box) {
		if b == nil || b.Culled {
			return
		}
		if b.Node.Kind == doctree.KindText && b.Node.Text != "" {
			out = append(out, RenderNode{Rect: b.Rect, Text: b.Node.Text})
		} else if b.Node.Kind == doctree.KindElement {
			out = append(out, RenderNode{Rect: b.Rect, Tag: b.Node.Name})
		}
		for _, c := range b.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return out
}

// MatchRules returns every stylesheet rule that applies to n, using
// cascadia selector matching against a minimal *html.Node projection of
// n's ancestry-free shape (attribute/tag matching only; this layout
// engine does not implement combinators that require sibling state).
func MatchRules(sheet *style.Stylesheet, n *doctree.Node) []*style.Rule {
	if sheet == nil || n.Kind != doctree.KindElement {
		return nil
	}
	shim := &html.Node{Type: html.ElementNode, Data: n.Name}
	for _, name := range n.Attrs.Names() {
		v, _ := n.Attrs.Get(name)
		shim.Attr = append(shim.Attr, html.Attribute{Key: name, Val: v})
	}

	var matched []*style.Rule
	for _, r := range sheet.Rules {
		if r.Matches(shim) {
			matched = append(matched, r)
		}
	}
	return matched
}
