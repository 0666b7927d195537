// Package htmlparser is the sole gateway from untrusted bytes to the
// Document Tree (spec §4.1). It drives golang.org/x/net/html's
// tokenizer through a custom HTML5 insertion-mode state machine rather
// than calling html.Parse, so that the Security Context's element and
// attribute policy is enforced mid-construction instead of as a
// post-pass.
package htmlparser

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/security"
)

// InsertionMode names the HTML5 tree construction states named in spec
// §4.1.
type InsertionMode int

const (
	Initial InsertionMode = iota
	BeforeHtml
	BeforeHead
	InHead
	AfterHead
	InBody
	Text
	InTable
	InRow
	InCell
	AfterBody
	AfterAfterBody
)

// ErrorKind is the Parser's failure taxonomy (spec §4.1).
type ErrorKind int

const (
	ErrEncodingFailure ErrorKind = iota
	ErrResourceExhausted
	ErrPolicyRejected
)

// ParseError wraps a parse failure with its kind.
type ParseError struct {
	Kind ErrorKind
	Err  error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(kind ErrorKind, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsResourceExhausted reports whether err is a ResourceExhausted ParseError.
func IsResourceExhausted(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == ErrResourceExhausted
}

// yieldCheckpointInterval is the node count between cooperative yield
// checkpoints the parser inserts to bound tail latency (spec §5).
const yieldCheckpointInterval = 512

// parser drives one parse() invocation.
type parser struct {
	ctx         *security.Context
	originURL   string
	mode        InsertionMode
	tokenizer   *html.Tokenizer
	doc         *doctree.Node
	openStack   []*doctree.Node // construction stack; top is openStack[len-1]
	headSeen    bool
	nodeCount   int
	yieldFn     func()
	dropRawText bool // true while consuming a blocked script/style element's raw-text body
}

// ParseOptions configures parse behavior beyond the Security Context.
type ParseOptions struct {
	DeclaredCharset string
	OnYieldCheckpoint func()
}

// Parse implements the Parser contract: parse(bytes, origin_url,
// security_context) -> Document | ParseError.
func Parse(raw []byte, originURL string, ctx *security.Context, opts ParseOptions) (*doctree.Node, error) {
	decoded, err := decodeToUTF8(raw, opts.DeclaredCharset)
	if err != nil {
		return nil, newParseError(ErrEncodingFailure, "%w", err)
	}

	p := &parser{
		ctx:       ctx,
		originURL: originURL,
		mode:      Initial,
		tokenizer: html.NewTokenizer(strings.NewReader(string(decoded))),
		doc:       doctree.NewDocument(),
		yieldFn:   opts.OnYieldCheckpoint,
	}
	p.openStack = []*doctree.Node{p.doc}

	if err := p.run(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func (p *parser) top() *doctree.Node {
	return p.openStack[len(p.openStack)-1]
}

func (p *parser) push(n *doctree.Node) {
	p.openStack = append(p.openStack, n)
}

func (p *parser) pop() {
	if len(p.openStack) > 1 {
		p.openStack = p.openStack[:len(p.openStack)-1]
	}
}

func (p *parser) run() error {
	for {
		tt := p.tokenizer.Next()
		if tt == html.ErrorToken {
			if err := p.tokenizer.Err(); err != nil && err.Error() != "EOF" {
				// malformed input does not abort parsing (spec §4.1); treat
				// as end of input.
			}
			return nil
		}

		tok := p.tokenizer.Token()
		if err := p.dispatch(tt, tok); err != nil {
			return err
		}
	}
}

func (p *parser) dispatch(tt html.TokenType, tok html.Token) error {
	switch p.mode {
	case Initial:
		return p.handleInitial(tt, tok)
	case BeforeHtml:
		return p.handleBeforeHtml(tt, tok)
	case BeforeHead:
		return p.handleBeforeHead(tt, tok)
	case InHead:
		return p.handleInHead(tt, tok)
	case AfterHead:
		return p.handleAfterHead(tt, tok)
	case InBody, InTable, InRow, InCell:
		return p.handleInBody(tt, tok)
	case Text:
		return p.handleText(tt, tok)
	case AfterBody:
		return p.handleAfterBody(tt, tok)
	case AfterAfterBody:
		return p.handleAfterAfterBody(tt, tok)
	default:
		return p.handleInBody(tt, tok)
	}
}

func (p *parser) handleInitial(tt html.TokenType, tok html.Token) error {
	switch tt {
	case html.DoctypeToken:
		return nil // doctype is recognized but not retained on the tree
	case html.CommentToken:
		return p.insertComment(tok)
	default:
		p.mode = BeforeHtml
		return p.handleBeforeHtml(tt, tok)
	}
}

func (p *parser) handleBeforeHtml(tt html.TokenType, tok html.Token) error {
	if tt == html.StartTagToken && tok.Data == "html" {
		el, err := p.insertElement(tok)
		if err != nil {
			return err
		}
		if el != nil {
			p.push(el)
		}
		p.mode = BeforeHead
		return nil
	}
	// implicitly open <html> (HTML5 error-recovery transition)
	el := doctree.NewElement("html")
	p.top().AppendChild(el)
	if err := p.countNode(); err != nil {
		return err
	}
	p.push(el)
	p.mode = BeforeHead
	return p.handleBeforeHead(tt, tok)
}

func (p *parser) handleBeforeHead(tt html.TokenType, tok html.Token) error {
	if tt == html.StartTagToken && tok.Data == "head" {
		el, err := p.insertElement(tok)
		if err != nil {
			return err
		}
		if el != nil {
			p.push(el)
		}
		p.mode = InHead
		return nil
	}
	head := doctree.NewElement("head")
	p.top().AppendChild(head)
	if err := p.countNode(); err != nil {
		return err
	}
	p.push(head)
	p.mode = InHead
	return p.handleInHead(tt, tok)
}

func (p *parser) handleInHead(tt html.TokenType, tok html.Token) error {
	switch tt {
	case html.EndTagToken:
		if tok.Data == "head" {
			p.pop()
			p.mode = AfterHead
			return nil
		}
	case html.StartTagToken:
		switch tok.Data {
		case "title", "style":
			return p.enterRawText(tok)
		case "meta", "link", "base":
			_, err := p.insertElement(tok)
			return err
		}
	case html.TextToken:
		if strings.TrimSpace(tok.Data) == "" {
			return nil // whitespace between head children is ignored
		}
	}
	// anything else implicitly closes head
	p.pop()
	p.mode = AfterHead
	return p.handleAfterHead(tt, tok)
}

func (p *parser) handleAfterHead(tt html.TokenType, tok html.Token) error {
	if tt == html.StartTagToken && tok.Data == "body" {
		el, err := p.insertElement(tok)
		if err != nil {
			return err
		}
		if el != nil {
			p.push(el)
		}
		p.mode = InBody
		return nil
	}
	body := doctree.NewElement("body")
	p.top().AppendChild(body)
	if err := p.countNode(); err != nil {
		return err
	}
	p.push(body)
	p.mode = InBody
	return p.handleInBody(tt, tok)
}

// tableRelated elements switch sub-modes but are handled with the same
// simplified strategy as InBody: appended under the current insertion
// point rather than performing full foster-parenting.
var tableModeFor = map[string]InsertionMode{
	"table": InTable,
	"tr":    InRow,
	"td":    InCell,
	"th":    InCell,
}

// rawTextElements are the elements whose tokenizer-emitted body is a
// single TextToken of literal, unparsed content (spec §4.1). A blocked
// instance still has that TextToken emitted by the tokenizer regardless
// of policy, so it must be consumed and discarded rather than left to
// fall through into the tree as ordinary page text.
var rawTextElements = map[string]bool{
	"script": true,
	"style":  true,
}

func (p *parser) handleInBody(tt html.TokenType, tok html.Token) error {
	switch tt {
	case html.StartTagToken, html.SelfClosingTagToken:
		if tok.Data == "html" {
			return nil
		}
		if tt == html.StartTagToken && rawTextElements[tok.Data] {
			return p.enterRawText(tok)
		}
		el, err := p.insertElement(tok)
		if err != nil {
			return err
		}
		if el == nil {
			return nil // blocked element: children still processed under current scope
		}
		if tt == html.SelfClosingTagToken || isVoidElement(tok.Data) {
			return nil
		}
		p.push(el)
		if newMode, ok := tableModeFor[tok.Data]; ok {
			p.mode = newMode
		}
		return nil
	case html.EndTagToken:
		if tok.Data == "body" {
			p.mode = AfterBody
			return nil
		}
		p.popMatching(tok.Data)
		if p.mode == InCell || p.mode == InRow || p.mode == InTable {
			p.mode = p.modeForStack()
		}
		return nil
	case html.TextToken:
		return p.insertText(tok.Data)
	case html.CommentToken:
		return p.insertComment(tok)
	}
	return nil
}

// modeForStack recomputes the sub-mode from the construction stack after
// an end tag pops out of a table context.
func (p *parser) modeForStack() InsertionMode {
	for i := len(p.openStack) - 1; i >= 0; i-- {
		switch p.openStack[i].Name {
		case "td", "th":
			return InCell
		case "tr":
			return InRow
		case "table":
			return InTable
		case "body":
			return InBody
		}
	}
	return InBody
}

func (p *parser) handleText(tt html.TokenType, tok html.Token) error {
	switch tt {
	case html.TextToken:
		if p.dropRawText {
			return nil
		}
		return p.insertText(tok.Data)
	case html.EndTagToken:
		if !p.dropRawText {
			p.pop()
		}
		p.dropRawText = false
		p.mode = p.modeForStack()
		return nil
	}
	return nil
}

func (p *parser) handleAfterBody(tt html.TokenType, tok html.Token) error {
	if tt == html.EndTagToken && tok.Data == "html" {
		p.mode = AfterAfterBody
		return nil
	}
	if tt == html.CommentToken {
		return p.insertComment(tok)
	}
	// anything else reopens body processing (error-recovery transition)
	p.mode = InBody
	return p.handleInBody(tt, tok)
}

func (p *parser) handleAfterAfterBody(tt html.TokenType, tok html.Token) error {
	if tt == html.CommentToken {
		p.doc.AppendChild(doctree.NewComment(tok.Data))
		return p.countNode()
	}
	return nil // trailing content after </html> is ignored
}

// popMatching pops the construction stack up to and including the
// nearest open element named tag, if any is open.
func (p *parser) popMatching(tag string) {
	for i := len(p.openStack) - 1; i > 0; i-- {
		if p.openStack[i].Name == tag {
			p.openStack = p.openStack[:i]
			return
		}
	}
}

// insertElement applies the element/attribute filter (spec §4.1/§4.2)
// before inserting. Blocked elements return (nil, nil): children are
// still processed under the current insertion point.
func (p *parser) insertElement(tok html.Token) (*doctree.Node, error) {
	if err := p.countNode(); err != nil {
		return nil, err
	}

	if p.ctx.IsElementBlocked(tok.Data) {
		p.ctx.RecordViolation(security.Violation{
			Kind:        security.ViolationPolicyElementBlock,
			DocumentURL: p.originURL,
			Summary:     fmt.Sprintf("blocked element <%s>", tok.Data),
		})
		return nil, nil
	}

	el := doctree.NewElement(tok.Data)
	if err := p.applyAttrs(el, tok); err != nil {
		return nil, err
	}
	p.top().AppendChild(el)
	return el, nil
}

// enterRawText inserts (or, if blocked, discards) a raw-text element and
// switches to Text mode so the tokenizer's single following TextToken is
// consumed as literal content rather than dispatched as markup.
func (p *parser) enterRawText(tok html.Token) error {
	el, err := p.insertElement(tok)
	if err != nil {
		return err
	}
	p.dropRawText = el == nil
	if el != nil {
		p.push(el)
	}
	p.mode = Text
	return nil
}

func (p *parser) applyAttrs(el *doctree.Node, tok html.Token) error {
	count := 0
	for _, a := range tok.Attr {
		name := strings.ToLower(a.Key)
		if p.ctx.IsAttrBlocked(name) {
			p.ctx.RecordViolation(security.Violation{
				Kind:        security.ViolationPolicyAttrBlock,
				DocumentURL: p.originURL,
				Summary:     fmt.Sprintf("stripped attribute %s on <%s>", name, tok.Data),
			})
			continue
		}
		if count >= p.ctx.Bounds.MaxAttributesPerElement {
			continue
		}
		value := a.Val
		if len(value) > p.ctx.Bounds.MaxAttributeValueLength {
			value = value[:p.ctx.Bounds.MaxAttributeValueLength]
			p.ctx.RecordViolation(security.Violation{
				Kind:        security.ViolationAttrTruncated,
				DocumentURL: p.originURL,
				Summary:     fmt.Sprintf("truncated attribute %s on <%s>", name, tok.Data),
			})
		}
		if el.Attrs.Set(name, value) {
			count++
		}
	}
	return nil
}

func (p *parser) insertText(text string) error {
	if text == "" {
		return nil
	}
	if err := p.countNode(); err != nil {
		return err
	}
	p.top().AppendChild(doctree.NewText(text))
	return nil
}

func (p *parser) insertComment(tok html.Token) error {
	if err := p.countNode(); err != nil {
		return err
	}
	p.top().AppendChild(doctree.NewComment(tok.Data))
	return nil
}

// countNode enforces max_elements and max_nesting_depth, inserts a yield
// checkpoint every yieldCheckpointInterval nodes, and is the sole choke
// point resource bounds flow through.
func (p *parser) countNode() error {
	p.nodeCount++
	if p.nodeCount > p.ctx.Bounds.MaxElements {
		return newParseError(ErrResourceExhausted, "element count exceeds max_elements (%d)", p.ctx.Bounds.MaxElements)
	}
	if len(p.openStack) > p.ctx.Bounds.MaxNestingDepth {
		return newParseError(ErrResourceExhausted, "nesting depth exceeds max_nesting_depth (%d)", p.ctx.Bounds.MaxNestingDepth)
	}
	if p.yieldFn != nil && p.nodeCount%yieldCheckpointInterval == 0 {
		p.yieldFn()
	}
	return nil
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoidElement(tag string) bool {
	return voidElements[tag]
}
