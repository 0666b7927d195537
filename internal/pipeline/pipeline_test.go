package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/layout"
	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/geeknik/citadel-browser/internal/zkvm"
)

func TestExtractTitleFromDocument(t *testing.T) {
	doc := doctree.NewDocument()
	htmlEl := doctree.NewElement("html")
	head := doctree.NewElement("head")
	title := doctree.NewElement("title")
	title.AppendChild(doctree.NewText("T"))
	head.AppendChild(title)
	htmlEl.AppendChild(head)
	doc.AppendChild(htmlEl)

	assert.Equal(t, "T", extractTitle(doc))
}

func TestExtractTitleEmptyWhenAbsent(t *testing.T) {
	doc := doctree.NewDocument()
	doc.AppendChild(doctree.NewElement("html"))
	assert.Equal(t, "", extractTitle(doc))
}

func TestEstimateByteSizeScalesWithBoxCount(t *testing.T) {
	doc := doctree.NewDocument()
	htmlEl := doctree.NewElement("html")
	body := doctree.NewElement("body")
	body.AppendChild(doctree.NewText("hello"))
	htmlEl.AppendChild(body)
	doc.AppendChild(htmlEl)

	tree := layout.Build(doc, nil, 800)
	size := estimateByteSize(tree)
	assert.Greater(t, size, int64(0))
}

func TestZkvmConfigGrantsStorageOnlyWhenNotPrivate(t *testing.T) {
	p := New(1 << 20)
	secCtx := security.New(settingsstore.Default())

	normal := p.ZkvmConfig(secCtx, false)
	assert.True(t, normal.Capabilities.Has(zkvm.CapabilityStorage))

	private := p.ZkvmConfig(secCtx, true)
	assert.False(t, private.Capabilities.Has(zkvm.CapabilityStorage))
	require.True(t, private.IsPrivate)
}
