package security

import (
	"fmt"
	"net/url"
	"strings"
)

// ResourceKind is the fetch kind a CSP request is evaluated against
// (spec §4.2).
type ResourceKind string

const (
	KindScript        ResourceKind = "script"
	KindStyle         ResourceKind = "style"
	KindImg           ResourceKind = "img"
	KindConnect       ResourceKind = "connect"
	KindFont          ResourceKind = "font"
	KindObject        ResourceKind = "object"
	KindMedia         ResourceKind = "media"
	KindFrame         ResourceKind = "frame"
	KindFormAction    ResourceKind = "form-action"
	KindBaseURI       ResourceKind = "base-uri"
	KindFrameAncestors ResourceKind = "frame-ancestors"
)

// CSPDirectives holds one source-expression list per directive plus the
// two boolean flags from spec §3.
type CSPDirectives struct {
	Default                 []string
	Script                  []string
	Style                   []string
	Img                     []string
	Connect                 []string
	Font                    []string
	Object                  []string
	Media                   []string
	Frame                   []string
	Base                    []string
	Form                    []string
	FrameAncestors          []string
	UpgradeInsecureRequests bool
	BlockAllMixedContent    bool
}

// DefaultCSP matches the scenario used throughout spec §8:
// script-src 'self', inline disallowed, everything else falls back to
// default-src 'self'.
func DefaultCSP() CSPDirectives {
	return CSPDirectives{
		Default: []string{"'self'"},
		Script:  []string{"'self'"},
	}
}

func (d CSPDirectives) directiveFor(kind ResourceKind) (name string, sources []string, ok bool) {
	switch kind {
	case KindScript:
		return "script-src", d.Script, len(d.Script) > 0
	case KindStyle:
		return "style-src", d.Style, len(d.Style) > 0
	case KindImg:
		return "img-src", d.Img, len(d.Img) > 0
	case KindConnect:
		return "connect-src", d.Connect, len(d.Connect) > 0
	case KindFont:
		return "font-src", d.Font, len(d.Font) > 0
	case KindObject:
		return "object-src", d.Object, len(d.Object) > 0
	case KindMedia:
		return "media-src", d.Media, len(d.Media) > 0
	case KindFrame:
		return "frame-src", d.Frame, len(d.Frame) > 0
	case KindFormAction:
		return "form-action", d.Form, len(d.Form) > 0
	case KindBaseURI:
		return "base-uri", d.Base, len(d.Base) > 0
	case KindFrameAncestors:
		return "frame-ancestors", d.FrameAncestors, len(d.FrameAncestors) > 0
	default:
		return "", nil, false
	}
}

// Decision is the CSP evaluation result.
type Decision int

const (
	Allow Decision = iota
	Block
)

// Request is the (document, resource, kind) tuple CSP evaluates (spec
// §4.2), plus the optional nonce/hash/inline markers a request may carry.
type Request struct {
	DocumentURL string
	ResourceURL string
	Kind        ResourceKind
	Inline      bool
	Nonce       string
	Hash        string // "<algo>-<b64>"
}

// EvaluateCSP decides Allow|Block for req under directives. The
// algorithm is deterministic for a fixed policy and request tuple (spec
// §8 "CSP allow/block is deterministic").
func EvaluateCSP(directives CSPDirectives, req Request) (Decision, string) {
	name, sources, ok := directives.directiveFor(req.Kind)
	if !ok {
		name, sources, ok = "default-src", directives.Default, len(directives.Default) > 0
	}
	if !ok {
		return Allow, ""
	}

	resourceURL := req.ResourceURL
	if directives.UpgradeInsecureRequests {
		resourceURL = upgradeScheme(resourceURL)
	}

	if directives.BlockAllMixedContent && isMixedContent(req.DocumentURL, resourceURL) {
		return Block, name
	}

	docOrigin := origin(req.DocumentURL)
	for _, src := range sources {
		if matchesSource(src, req, resourceURL, docOrigin) {
			return Allow, name
		}
	}
	return Block, name
}

func matchesSource(src string, req Request, resourceURL, docOrigin string) bool {
	switch {
	case src == "'none'":
		return false
	case src == "'self'":
		return origin(resourceURL) == docOrigin
	case src == "'unsafe-inline'":
		return req.Inline
	case strings.HasPrefix(src, "'nonce-"):
		want := strings.TrimSuffix(strings.TrimPrefix(src, "'nonce-"), "'")
		return req.Nonce != "" && req.Nonce == want
	case strings.HasPrefix(src, "'sha"):
		want := strings.TrimSuffix(src, "'")
		want = strings.TrimPrefix(want, "'")
		return req.Hash != "" && canonicalizeHash(req.Hash) == canonicalizeHash(want)
	case strings.HasSuffix(src, ":") && !strings.Contains(src, "/"):
		return schemeOf(resourceURL) == strings.TrimSuffix(src, ":")
	case strings.Contains(src, "*"):
		return matchesWildcardHost(src, resourceURL)
	default:
		return hostOf(resourceURL) == hostOf(src) || strings.HasPrefix(resourceURL, src)
	}
}

func canonicalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func matchesWildcardHost(pattern, rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	patHost := pattern
	if idx := strings.Index(pattern, "://"); idx >= 0 {
		patHost = pattern[idx+3:]
	}
	patHost = strings.SplitN(patHost, ":", 2)[0]
	if !strings.HasPrefix(patHost, "*.") {
		return host == patHost
	}
	suffix := strings.TrimPrefix(patHost, "*")
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	// wildcard matches exactly one label: host must have exactly one more
	// label than the suffix.
	remainder := strings.TrimSuffix(host, suffix)
	return remainder != "" && !strings.Contains(remainder, ".")
}

func upgradeScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") {
		return "https://" + strings.TrimPrefix(rawURL, "http://")
	}
	return rawURL
}

func isMixedContent(documentURL, resourceURL string) bool {
	return schemeOf(documentURL) == "https" && schemeOf(resourceURL) == "http"
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
