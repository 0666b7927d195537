package layout

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/style"
)

// StructuralHash feeds perfcore.Fingerprint's documentHash argument: a
// deterministic hash of node kinds, tag names, and attribute key/value
// pairs in document order (spec §4.5 "node structural hash + attribute
// hash").
func StructuralHash(doc *doctree.Node) uint64 {
	h := sha256.New()
	var walk func(n *doctree.Node)
	walk = func(n *doctree.Node) {
		var kindByte [1]byte
		kindByte[0] = byte(n.Kind)
		h.Write(kindByte[:])
		h.Write([]byte(n.Name))
		h.Write([]byte(n.Text))
		if n.Attrs != nil {
			for _, name := range n.Attrs.Names() {
				v, _ := n.Attrs.Get(name)
				h.Write([]byte(name))
				h.Write([]byte(v))
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(doc)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// StylesheetHash feeds perfcore.Fingerprint's stylesheetHash argument.
func StylesheetHash(sheet *style.Stylesheet) uint64 {
	if sheet == nil {
		return 0
	}
	h := sha256.New()
	for _, r := range sheet.Rules {
		for _, s := range r.Selectors {
			h.Write([]byte(s))
		}
		for _, d := range r.Decls {
			h.Write([]byte(d.Property))
			h.Write([]byte(d.Value.Raw))
		}
	}
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}
