// Package doctree defines the Document Tree data model (spec §3): a tree
// of Nodes each of which is an Element, Text, Comment, or the Document
// root, plus the canonical text-extraction view used when rendering is
// unavailable.
package doctree

import "strings"

// NodeKind discriminates the four Node variants.
type NodeKind int

const (
	KindDocument NodeKind = iota
	KindElement
	KindText
	KindComment
)

// Node is one entry in the Document Tree. Parent is a non-owning
// back-reference: the parent's Children slice owns the child, so a Node
// never keeps its parent alive (spec §9, "back-references must not be
// ownership edges").
type Node struct {
	Kind       NodeKind
	Name       string // qualified element name; empty for Text/Comment/Document
	Attrs      *AttrList
	Text       string // Text/Comment content
	Children   []*Node
	Parent     *Node
	Broken     string // non-empty marks a broken-resource placeholder (e.g. "mixed-content")
}

// AttrList is an insertion-ordered name->value mapping. Duplicate names
// are rejected at Set time (spec §4.1 "duplicate attribute names keep the
// first occurrence").
type AttrList struct {
	order []string
	byKey map[string]string
}

// NewAttrList returns an empty AttrList.
func NewAttrList() *AttrList {
	return &AttrList{byKey: make(map[string]string)}
}

// Set inserts name=value only if name is not already present, preserving
// first-occurrence-wins semantics. Returns false if the attribute already
// existed (call site treats that as a dropped duplicate, not an error).
func (a *AttrList) Set(name, value string) bool {
	key := strings.ToLower(name)
	if _, exists := a.byKey[key]; exists {
		return false
	}
	a.order = append(a.order, key)
	a.byKey[key] = value
	return true
}

// Delete removes name if present.
func (a *AttrList) Delete(name string) {
	key := strings.ToLower(name)
	if _, ok := a.byKey[key]; !ok {
		return
	}
	delete(a.byKey, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Get looks up an attribute value, case-insensitively.
func (a *AttrList) Get(name string) (string, bool) {
	v, ok := a.byKey[strings.ToLower(name)]
	return v, ok
}

// Names returns attribute names in insertion order.
func (a *AttrList) Names() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Len reports the attribute count.
func (a *AttrList) Len() int {
	return len(a.order)
}

// NewElement allocates an unattached Element node.
func NewElement(name string) *Node {
	return &Node{Kind: KindElement, Name: strings.ToLower(name), Attrs: NewAttrList()}
}

// NewText allocates an unattached Text node.
func NewText(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

// NewComment allocates an unattached Comment node.
func NewComment(text string) *Node {
	return &Node{Kind: KindComment, Text: text}
}

// NewDocument allocates the tree root.
func NewDocument() *Node {
	return &Node{Kind: KindDocument}
}

// AppendChild links child under n, setting child's Parent back-reference.
func (n *Node) AppendChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// Depth returns the distance from n to the Document root (root is 0).
func (n *Node) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Count returns the total number of nodes in the subtree rooted at n,
// including n itself.
func (n *Node) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// MaxDepth returns the greatest Depth() among all nodes in the subtree.
func (n *Node) MaxDepth() int {
	max := n.Depth()
	for _, c := range n.Children {
		if d := c.MaxDepth(); d > max {
			max = d
		}
	}
	return max
}

// FindAll returns every descendant Element (n included) with the given
// tag name.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	name = strings.ToLower(name)
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.Kind == KindElement && cur.Name == name {
			out = append(out, cur)
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// nonRenderedElements never contribute to the canonical text view: their
// content is metadata (title), presentation (style), or program text
// (script), never prose a user reads (spec §4.1/§8 scenario 1 excludes
// "T" from the document's own text; scenario 2 excludes script bodies
// even when the script element survives policy filtering).
var nonRenderedElements = map[string]bool{
	"head": true, "title": true, "style": true, "script": true,
}

// ExtractText produces the canonical text serialisation described in
// spec §4.1: text-node contents in document order, a space inserted at
// every element boundary, whitespace runs collapsed, leading/trailing
// trimmed. Non-rendered elements (head, title, style, script) are
// skipped entirely unless root itself is one of them, so callers can
// still extract a <title>'s own text directly.
func ExtractText(root *Node) string {
	var sb strings.Builder
	var walk func(n *Node, isRoot bool)
	walk = func(n *Node, isRoot bool) {
		switch n.Kind {
		case KindText:
			sb.WriteString(n.Text)
		case KindElement:
			if !isRoot && nonRenderedElements[n.Name] {
				return
			}
			sb.WriteByte(' ')
			for _, c := range n.Children {
				walk(c, false)
			}
			sb.WriteByte(' ')
		default:
			for _, c := range n.Children {
				walk(c, false)
			}
		}
	}
	walk(root, true)
	return collapseWhitespace(sb.String())
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
