package security

import (
	"testing"

	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCSPScriptBlockedByDefault(t *testing.T) {
	csp := DefaultCSP()
	req := Request{
		DocumentURL: "https://a.example/",
		ResourceURL: "inline",
		Kind:        KindScript,
		Inline:      true,
	}
	decision, directive := EvaluateCSP(csp, req)
	assert.Equal(t, Block, decision)
	assert.Equal(t, "script-src", directive)
}

func TestEvaluateCSPIsDeterministic(t *testing.T) {
	csp := DefaultCSP()
	req := Request{DocumentURL: "https://a.example/", ResourceURL: "https://a.example/x.js", Kind: KindScript}
	d1, _ := EvaluateCSP(csp, req)
	d2, _ := EvaluateCSP(csp, req)
	assert.Equal(t, d1, d2)
}

func TestEvaluateCSPSelfAllowsSameOrigin(t *testing.T) {
	csp := DefaultCSP()
	req := Request{DocumentURL: "https://a.example/", ResourceURL: "https://a.example/x.js", Kind: KindScript}
	decision, _ := EvaluateCSP(csp, req)
	assert.Equal(t, Allow, decision)
}

func TestEvaluateCSPWildcardHost(t *testing.T) {
	csp := CSPDirectives{Img: []string{"*.example.com"}}
	allowed := Request{DocumentURL: "https://a.example.com/", ResourceURL: "https://cdn.example.com/x.png", Kind: KindImg}
	blocked := Request{DocumentURL: "https://a.example.com/", ResourceURL: "https://evil.com/x.png", Kind: KindImg}

	d1, _ := EvaluateCSP(csp, allowed)
	d2, _ := EvaluateCSP(csp, blocked)
	assert.Equal(t, Allow, d1)
	assert.Equal(t, Block, d2)
}

func TestMixedContentBlockedWhenFlagSet(t *testing.T) {
	csp := CSPDirectives{Img: []string{"*"}, BlockAllMixedContent: true}
	req := Request{DocumentURL: "https://a.example/", ResourceURL: "http://b.example/x.png", Kind: KindImg}
	decision, _ := EvaluateCSP(csp, req)
	assert.Equal(t, Block, decision)
}

func TestUpgradeInsecureRequests(t *testing.T) {
	got, ok := UpgradeOrRefuse("http://b.example/x.png", true)
	require.True(t, ok)
	assert.Equal(t, "https://b.example/x.png", got)

	_, ok = UpgradeOrRefuse("http://b.example/x.png", false)
	assert.False(t, ok)
}

func TestStripTrackingParamsIdempotent(t *testing.T) {
	once := StripTrackingParams("https://a.example/?utm_source=x&id=1")
	twice := StripTrackingParams(once)
	assert.Equal(t, once, twice)
	assert.NotContains(t, once, "utm_source")
	assert.Contains(t, once, "id=1")
}

func TestElementAndAttrFilterSoundness(t *testing.T) {
	ctx := New(settingsstore.Default())
	assert.True(t, ctx.IsElementBlocked("applet"))
	assert.False(t, ctx.IsElementBlocked("p"))
	assert.True(t, ctx.IsAttrBlocked("srcdoc"))

	ctx.AllowScripts = false
	assert.True(t, ctx.IsElementBlocked("script"))
	assert.True(t, ctx.IsAttrBlocked("onclick"))
}

func TestViolationRingWraps(t *testing.T) {
	ring := NewViolationRing(2)
	ring.Push(Violation{Kind: ViolationResourceExhausted, Summary: "a"})
	ring.Push(Violation{Kind: ViolationResourceExhausted, Summary: "b"})
	ring.Push(Violation{Kind: ViolationResourceExhausted, Summary: "c"})

	snap := ring.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Summary)
	assert.Equal(t, "c", snap[1].Summary)
}

func TestCanvasNoiseStableAndDistinctAcrossOrigins(t *testing.T) {
	var salt [32]byte
	for i := range salt {
		salt[i] = byte(i)
	}
	src := NewNoiseSource(salt)

	a1 := src.CanvasNoise("https://a.example", 1, 2, 0)
	a2 := src.CanvasNoise("https://a.example", 1, 2, 0)
	b1 := src.CanvasNoise("https://b.example", 1, 2, 0)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b1)
}
