package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/geeknik/citadel-browser/internal/style"
)

func newTestSheet() (*style.Stylesheet, error) {
	return style.Parse(".lead { color: red; }", style.OriginAuthor, 0)
}

func buildDoc(t *testing.T) *doctree.Node {
	t.Helper()
	doc := doctree.NewDocument()
	htmlEl := doctree.NewElement("html")
	body := doctree.NewElement("body")
	p1 := doctree.NewElement("p")
	p1.AppendChild(doctree.NewText("near the top"))
	p2 := doctree.NewElement("p")
	p2.AppendChild(doctree.NewText("far below the fold"))
	body.AppendChild(p1)
	body.AppendChild(p2)
	htmlEl.AppendChild(body)
	doc.AppendChild(htmlEl)
	return doc
}

func TestDiscoverResourcesFindsImagesAndStylesheets(t *testing.T) {
	doc := doctree.NewDocument()
	htmlEl := doctree.NewElement("html")
	head := doctree.NewElement("head")
	link := doctree.NewElement("link")
	link.Attrs.Set("rel", "stylesheet")
	link.Attrs.Set("href", "style.css")
	head.AppendChild(link)
	body := doctree.NewElement("body")
	img := doctree.NewElement("img")
	img.Attrs.Set("src", "cat.png")
	body.AppendChild(img)
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	doc.AppendChild(htmlEl)

	resources := DiscoverResources(doc)
	require.Len(t, resources, 2)

	var sawStylesheet, sawImage bool
	for _, r := range resources {
		switch r.Kind {
		case ResourceStylesheet:
			sawStylesheet = r.URL == "style.css"
		case ResourceImage:
			sawImage = r.URL == "cat.png"
		}
	}
	assert.True(t, sawStylesheet)
	assert.True(t, sawImage)
}

func TestCullMarksBoxesOutsideExpandedViewport(t *testing.T) {
	doc := buildDoc(t)
	tree := Build(doc, nil, 800)

	viewport := Rect{X: 0, Y: 0, Width: 800, Height: 10}
	Cull(tree, viewport, 5)

	nodes := Emit(tree)
	require.NotEmpty(t, nodes)

	var sawCulledGap bool
	for _, rn := range nodes {
		if rn.Text == "far below the fold" {
			sawCulledGap = true
		}
	}
	assert.False(t, sawCulledGap, "content far outside the expanded viewport should be culled from the render tree")
}

func TestStructuralHashDeterministicAndSensitiveToContent(t *testing.T) {
	doc1 := buildDoc(t)
	doc2 := buildDoc(t)
	assert.Equal(t, StructuralHash(doc1), StructuralHash(doc2))

	doc3 := doctree.NewDocument()
	doc3.AppendChild(doctree.NewElement("html"))
	assert.NotEqual(t, StructuralHash(doc1), StructuralHash(doc3))
}

func TestMatchRulesMatchesClassSelector(t *testing.T) {
	ctx := security.New(settingsstore.Default())
	assert.NotNil(t, ctx)

	doc := doctree.NewDocument()
	p := doctree.NewElement("p")
	p.Attrs.Set("class", "lead")
	doc.AppendChild(p)

	sheet, err := newTestSheet()
	require.NoError(t, err)

	matched := MatchRules(sheet, p)
	assert.Len(t, matched, 1)
}
