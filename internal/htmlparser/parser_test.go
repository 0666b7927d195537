package htmlparser

import (
	"strings"
	"testing"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCtx() *security.Context {
	return security.New(settingsstore.Default())
}

func TestWellFormedPageScenario1(t *testing.T) {
	ctx := newCtx()
	body := `<!DOCTYPE html><html><head><title>T</title></head><body><h1>Hi</h1><p>Hello <em>world</em>.</p></body></html>`
	doc, err := Parse([]byte(body), "https://a.example/", ctx, ParseOptions{})
	require.NoError(t, err)

	titles := doc.FindAll("title")
	require.Len(t, titles, 1)
	assert.Equal(t, "T", doctree.ExtractText(titles[0]))
	assert.Equal(t, "Hi Hello world .", doctree.ExtractText(doc))
	assert.Empty(t, ctx.Violations())
}

func TestScriptBlockedByDefaultScenario2(t *testing.T) {
	ctx := newCtx()
	ctx.AllowScripts = false
	body := `<html><body><script>alert(1)</script>Hello</body></html>`
	doc, err := Parse([]byte(body), "https://a.example/", ctx, ParseOptions{})
	require.NoError(t, err)

	assert.Empty(t, doc.FindAll("script"))
	assert.Equal(t, "Hello", strings.TrimSpace(doctree.ExtractText(doc)))

	violations := ctx.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, security.ViolationPolicyElementBlock, violations[0].Kind)
}

func TestDepthBombScenario3(t *testing.T) {
	ctx := newCtx()
	ctx.Bounds.MaxNestingDepth = 100
	ctx.Bounds.MaxElements = 100_000

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 500; i++ {
		sb.WriteString("<div>")
	}
	for i := 0; i < 500; i++ {
		sb.WriteString("</div>")
	}
	sb.WriteString("</body></html>")

	_, err := Parse([]byte(sb.String()), "https://a.example/", ctx, ParseOptions{})
	require.Error(t, err)
	assert.True(t, IsResourceExhausted(err))
}

func TestAttributeTruncationRecordsViolation(t *testing.T) {
	ctx := newCtx()
	ctx.Bounds.MaxAttributeValueLength = 4
	doc, err := Parse([]byte(`<html><body><div data-x="abcdef"></div></body></html>`), "https://a.example/", ctx, ParseOptions{})
	require.NoError(t, err)

	divs := doc.FindAll("div")
	require.Len(t, divs, 1)
	v, ok := divs[0].Attrs.Get("data-x")
	require.True(t, ok)
	assert.Equal(t, "abcd", v)

	violations := ctx.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, security.ViolationAttrTruncated, violations[0].Kind)
}

func TestDuplicateAttributesKeepFirst(t *testing.T) {
	ctx := newCtx()
	doc, err := Parse([]byte(`<html><body><div id="one" id="two"></div></body></html>`), "https://a.example/", ctx, ParseOptions{})
	require.NoError(t, err)
	divs := doc.FindAll("div")
	require.Len(t, divs, 1)
	v, _ := divs[0].Attrs.Get("id")
	assert.Equal(t, "one", v)
}
