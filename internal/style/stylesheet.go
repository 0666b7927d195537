// Package style models the Stylesheet data (spec §3) and parses CSS text
// into it using douceur, the CSS parser already pulled in transitively by
// the parent corpus. Selector compilation/matching against a parsed
// *html.Node-shaped tree is done with cascadia.
package style

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// Origin distinguishes author-supplied rules from user-agent defaults.
type Origin int

const (
	OriginUserAgent Origin = iota
	OriginAuthor
)

// Value is a single CSS declaration value, tracking any unit suffix so
// layout code can interpret px/em/rem/%/vh/vw/vmin/vmax/ch/ex/fr without
// re-parsing the raw string.
type Value struct {
	Raw  string
	Unit string
}

var knownUnits = []string{"px", "rem", "em", "vmin", "vmax", "vh", "vw", "ch", "ex", "fr", "%"}

// ParseValue extracts a trailing unit, if any, from raw.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	for _, u := range knownUnits {
		if strings.HasSuffix(raw, u) && len(raw) > len(u) {
			return Value{Raw: raw, Unit: u}
		}
	}
	return Value{Raw: raw}
}

// Declaration is one property:value pair. Unknown properties are kept as
// opaque Values for forward compatibility (spec §4.1).
type Declaration struct {
	Property string
	Value    Value
}

// Rule is a selector list paired with its ordered declarations.
type Rule struct {
	Selectors []string
	compiled  cascadia.SelectorGroup
	Decls     []Declaration
	Origin    Origin
}

// Matches reports whether the rule's selector list matches n, where n is
// a node from the parser's underlying golang.org/x/net/html tree.
func (r *Rule) Matches(n *html.Node) bool {
	if r.compiled == nil {
		return false
	}
	return r.compiled.Match(n)
}

// Stylesheet is an ordered list of Rules (spec §3).
type Stylesheet struct {
	Rules        []*Rule
	DeclaredSize int // bytes of the source text, for the max_stylesheet_bytes cap
}

// MaxDeclarationValueLength caps an individual declaration's serialized
// value (spec §4.1 "declarations whose computed value exceeds the length
// cap are dropped").
const MaxDeclarationValueLength = 8192

// Parse parses CSS source text into a Stylesheet, dropping overlong
// declaration values and skipping every at-rule, known ones such as
// @media included, together with its body.
func Parse(source string, origin Origin, maxBytes int) (*Stylesheet, error) {
	if maxBytes > 0 && len(source) > maxBytes {
		return nil, fmt.Errorf("stylesheet exceeds max_stylesheet_bytes (%d > %d)", len(source), maxBytes)
	}

	parsed, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet: %w", err)
	}

	sheet := &Stylesheet{DeclaredSize: len(source)}
	for _, rule := range parsed.Rules {
		if rule.Kind == css.AtRule {
			// every at-rule is skipped with its braced body, including
			// the rules nested in it; douceur has already consumed that
			// body during parsing.
			continue
		}
		out := &Rule{Selectors: append([]string(nil), rule.Selectors...), Origin: origin}
		if sel, err := compileSelectors(out.Selectors); err == nil {
			out.compiled = sel
		}
		for _, d := range rule.Declarations {
			val := ParseValue(d.Value)
			if len(val.Raw) > MaxDeclarationValueLength {
				continue
			}
			out.Decls = append(out.Decls, Declaration{Property: strings.ToLower(d.Property), Value: val})
		}
		sheet.Rules = append(sheet.Rules, out)
	}
	return sheet, nil
}

func compileSelectors(selectors []string) (cascadia.SelectorGroup, error) {
	joined := strings.Join(selectors, ", ")
	if joined == "" {
		return nil, fmt.Errorf("empty selector list")
	}
	return cascadia.ParseGroup(joined)
}
