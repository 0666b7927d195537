package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestParseBasicRule(t *testing.T) {
	sheet, err := Parse(`p.lead { color: red; width: 10px; }`, OriginAuthor, 0)
	require.NoError(t, err)
	require.Len(t, sheet.Rules, 1)
	rule := sheet.Rules[0]
	assert.Equal(t, []string{"p.lead"}, rule.Selectors)
	require.Len(t, rule.Decls, 2)
	assert.Equal(t, "color", rule.Decls[0].Property)
	assert.Equal(t, "10px", rule.Decls[1].Value.Raw)
	assert.Equal(t, "px", rule.Decls[1].Value.Unit)
}

func TestParseRejectsOversizeSheet(t *testing.T) {
	_, err := Parse("p { color: red; }", OriginAuthor, 4)
	assert.Error(t, err)
}

func TestRuleMatchesNode(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<p class="lead">hi</p>`))
	require.NoError(t, err)

	var p *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			p = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	require.NotNil(t, p)

	sheet, err := Parse(`p.lead { color: red; }`, OriginAuthor, 0)
	require.NoError(t, err)
	assert.True(t, sheet.Rules[0].Matches(p))
}
