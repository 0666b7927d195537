// Package pipeline wires the parser, security context, ZKVM instance,
// and layout engine into the single entry point the Tab Manager calls on
// every navigation (spec §3 "Data flow").
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/geeknik/citadel-browser/internal/doctree"
	"github.com/geeknik/citadel-browser/internal/htmlparser"
	"github.com/geeknik/citadel-browser/internal/layout"
	"github.com/geeknik/citadel-browser/internal/network"
	"github.com/geeknik/citadel-browser/internal/perfcore"
	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/style"
	"github.com/geeknik/citadel-browser/internal/tabmanager"
	"github.com/geeknik/citadel-browser/internal/zkvm"
)

// defaultViewport is used until a real UI layer reports actual viewport
// dimensions.
var defaultViewport = layout.Rect{Width: 1280, Height: 800}

// cullMargin is the fixed margin expanding the viewport for culling
// (spec §4.5 "expanded viewport (actual viewport +/- a fixed margin)").
const cullMargin = 200.0

// bytesPerBox is the byte-size estimate attributed to each box in a
// cached layout result; spec §9 open question (b) leaves the exact byte
// budget unfixed, so this is a coarse, documented estimate rather than a
// precise allocator accounting.
const bytesPerBox = 256

// Pipeline owns the shared Network client, layout cache, and pressure
// manager used across every tab's navigations.
type Pipeline struct {
	network  *network.Client
	cache    *perfcore.Cache
	pressure *perfcore.PressureManager
	metrics  *perfcore.Metrics
}

// New builds a Pipeline with a fresh Network client and a layout cache
// bounded by capBytes.
func New(capBytes int64) *Pipeline {
	cache := perfcore.NewCache(capBytes)
	return &Pipeline{
		network:  network.NewClient(),
		cache:    cache,
		pressure: perfcore.NewPressureManager(cache, capBytes),
		metrics:  perfcore.NewMetrics(),
	}
}

// Metrics exposes the shared Performance Core metrics for a diagnostics
// server to publish.
func (p *Pipeline) Metrics() *perfcore.Metrics { return p.metrics }

// Pressure exposes the shared pressure manager so a caller can register
// the callback it runs at Critical pressure.
func (p *Pipeline) Pressure() *perfcore.PressureManager { return p.pressure }

// ZkvmConfig builds the per-tab ZKVM configuration from a tab's own
// Security Context, suitable for tabmanager.New's zkvmConfig parameter.
func (p *Pipeline) ZkvmConfig(secCtx *security.Context, private bool) zkvm.Config {
	caps := []zkvm.Capability{zkvm.CapabilityNetworkFetch, zkvm.CapabilityTimer}
	if !private {
		caps = append(caps, zkvm.CapabilityStorage)
	}
	return zkvm.Config{
		MaxMemoryBytes: secCtx.Bounds.MaxMemoryBytes,
		Timeout:        time.Duration(secCtx.Bounds.MaxTimeoutMS) * time.Millisecond,
		Capabilities:   zkvm.NewCapabilitySet(caps...),
		SecurityCtx:    secCtx,
		IsPrivate:      private,
	}
}

// Navigate is a tabmanager.NavigateFunc: it fetches url, parses it inside
// secCtx, parses and merges stylesheets, computes and caches a layout,
// and publishes progress/render-tree events as it goes.
func (p *Pipeline) Navigate(ctx context.Context, inst *zkvm.Instance, secCtx *security.Context, url string, publish func(tabmanager.Event)) (string, error) {
	start := time.Now()
	// the ZKVM instance mediates capability-gated script/fetch/storage
	// requests the document's own script content may issue later; a
	// top-level document fetch is initiated by the Tab Manager itself
	// and does not need to round-trip through the instance's channels.
	_ = inst

	upgraded, ok := security.UpgradeOrRefuse(url, secCtx.CSP.UpgradeInsecureRequests)
	if !ok {
		return "", fmt.Errorf("pipeline: scheme refused for %s", url)
	}

	publish(tabmanager.Event{Kind: tabmanager.EventProgressChanged, Progress: 10})

	res, err := p.network.Fetch(ctx, upgraded, true)
	if err != nil {
		return "", fmt.Errorf("pipeline: fetch %s: %w", upgraded, err)
	}
	publish(tabmanager.Event{Kind: tabmanager.EventProgressChanged, Progress: 40})

	doc, err := htmlparser.Parse(res.Body, upgraded, secCtx, htmlparser.ParseOptions{})
	if err != nil {
		return "", fmt.Errorf("pipeline: parse %s: %w", upgraded, err)
	}
	publish(tabmanager.Event{Kind: tabmanager.EventProgressChanged, Progress: 60})

	sheet := htmlparser.ParseInlineStylesheets(doc, secCtx.Bounds.MaxStylesheetBytes)
	for _, link := range htmlparser.LinkedStylesheets(doc) {
		linkURL, ok := security.UpgradeOrRefuse(link.Href, secCtx.CSP.UpgradeInsecureRequests)
		if !ok {
			continue
		}
		linkRes, err := p.network.Fetch(ctx, linkURL, true)
		if err != nil {
			continue // a failed stylesheet fetch degrades styling, not the page load
		}
		linked, err := style.Parse(string(linkRes.Body), style.OriginAuthor, secCtx.Bounds.MaxStylesheetBytes)
		if err != nil {
			continue
		}
		sheet.Rules = append(sheet.Rules, linked.Rules...)
	}

	layoutStart := time.Now()
	fp := perfcore.Fingerprint(layout.StructuralHash(doc), layout.StylesheetHash(sheet), perfcore.Viewport{
		Width: int(defaultViewport.Width), Height: int(defaultViewport.Height),
		Zoom: 1.0, DevicePixelRatio: 1.0,
	})

	var tree *layout.Tree
	if cached, hit := p.cache.Get(fp); hit {
		tree = cached.Boxes.(*layout.Tree)
	} else {
		tree = layout.Build(doc, sheet, defaultViewport.Width)
		layout.Cull(tree, defaultViewport, cullMargin)
		size := estimateByteSize(tree)
		if !p.pressure.InstallsBlocked() {
			p.cache.Install(fp, perfcore.LayoutResult{Boxes: tree, ByteSize: size, LastAccess: time.Now()})
			p.pressure.Track(size)
		}
	}
	p.metrics.RecordLayout(time.Since(layoutStart).Seconds())

	renderStart := time.Now()
	renderTree := layout.Emit(tree)
	p.metrics.RecordRender(time.Since(renderStart).Seconds())
	publish(tabmanager.Event{Kind: tabmanager.EventRenderTreeUpdated, RenderTree: renderTree})

	for _, v := range secCtx.Violations() {
		publish(tabmanager.Event{Kind: tabmanager.EventViolationRecorded, Violation: v.ToSummary()})
	}

	p.metrics.RecordPageLoad(time.Since(start).Seconds())
	publish(tabmanager.Event{Kind: tabmanager.EventProgressChanged, Progress: 100})

	p.pressure.Recompute()
	return security.SanitizeForDisplay(extractTitle(doc)), nil
}

// extractTitle returns the document's <title> text, or "" if absent
// (spec §8 scenario 1: "document title = T").
func extractTitle(doc *doctree.Node) string {
	titles := doc.FindAll("title")
	if len(titles) == 0 {
		return ""
	}
	return doctree.ExtractText(titles[0])
}

// estimateByteSize attributes a coarse per-box cost to a computed layout
// tree for cache accounting purposes.
func estimateByteSize(t *layout.Tree) int64 {
	var count int64
	var walk func(b *layout.Box)
	walk = func(b *layout.Box) {
		if b == nil {
			return
		}
		count++
		for _, c := range b.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return count * bytesPerBox
}
