package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextScenario1(t *testing.T) {
	doc := NewDocument()
	html := NewElement("html")
	head := NewElement("head")
	title := NewElement("title")
	title.AppendChild(NewText("T"))
	head.AppendChild(title)
	body := NewElement("body")
	h1 := NewElement("h1")
	h1.AppendChild(NewText("Hi"))
	p := NewElement("p")
	p.AppendChild(NewText("Hello "))
	em := NewElement("em")
	em.AppendChild(NewText("world"))
	p.AppendChild(em)
	p.AppendChild(NewText("."))
	body.AppendChild(h1)
	body.AppendChild(p)
	html.AppendChild(head)
	html.AppendChild(body)
	doc.AppendChild(html)

	assert.Equal(t, "Hi Hello world .", ExtractText(doc))
}

func TestAttrListFirstOccurrenceWins(t *testing.T) {
	attrs := NewAttrList()
	require.True(t, attrs.Set("class", "first"))
	require.False(t, attrs.Set("class", "second"))
	v, ok := attrs.Get("CLASS")
	require.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestDepthAndCount(t *testing.T) {
	root := NewDocument()
	a := NewElement("a")
	b := NewElement("b")
	a.AppendChild(b)
	root.AppendChild(a)

	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 1, a.Depth())
	assert.Equal(t, 2, b.Depth())
	assert.Equal(t, 3, root.Count())
	assert.Equal(t, 2, root.MaxDepth())
}
