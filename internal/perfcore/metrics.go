package perfcore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ringCapacity bounds each fixed-capacity sample ring (spec §4.5 "all
// samples are fixed-capacity rings; old samples are dropped").
const ringCapacity = 256

// sampleRing is a fixed-capacity ring of float64 duration-in-seconds samples.
type sampleRing struct {
	mu   sync.Mutex
	buf  []float64
	next int
	full bool
}

func newSampleRing() *sampleRing {
	return &sampleRing{buf: make([]float64, ringCapacity)}
}

func (r *sampleRing) push(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % ringCapacity
	if r.next == 0 {
		r.full = true
	}
}

func (r *sampleRing) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = ringCapacity
	}
	out := make([]float64, n)
	copy(out, r.buf[:n])
	return out
}

// Metrics tracks the per-component counters from spec §4.5: bytes
// allocated, cache hits/misses, evictions, and the three sample rings,
// exported as Prometheus gauges/counters/histograms the way the parent
// corpus's monitoring package does.
type Metrics struct {
	BytesAllocated prometheus.Gauge
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	Evictions      prometheus.Counter
	PressureLevel  prometheus.Gauge
	LayoutTime     prometheus.Histogram
	RenderTime     prometheus.Histogram
	PageLoadTime   prometheus.Histogram

	layoutRing   *sampleRing
	renderRing   *sampleRing
	pageLoadRing *sampleRing
}

// NewMetrics registers the Performance Core's prometheus collectors
// against the default registry via promauto, matching the parent
// corpus's NewMetrics pattern.
func NewMetrics() *Metrics {
	return &Metrics{
		BytesAllocated: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "citadel_perfcore_bytes_allocated", Help: "Tracked live bytes across caches and arenas.",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citadel_perfcore_cache_hits_total", Help: "Layout cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citadel_perfcore_cache_misses_total", Help: "Layout cache misses.",
		}),
		Evictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "citadel_perfcore_cache_evictions_total", Help: "Layout cache evictions.",
		}),
		PressureLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "citadel_perfcore_pressure_level", Help: "Current memory pressure level (0=Low..3=Critical).",
		}),
		LayoutTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "citadel_perfcore_layout_seconds", Help: "Layout computation duration.",
			Buckets: prometheus.DefBuckets,
		}),
		RenderTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "citadel_perfcore_render_seconds", Help: "Render emit duration.",
			Buckets: prometheus.DefBuckets,
		}),
		PageLoadTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "citadel_perfcore_page_load_seconds", Help: "Navigation-to-Ready duration.",
			Buckets: prometheus.DefBuckets,
		}),
		layoutRing:   newSampleRing(),
		renderRing:   newSampleRing(),
		pageLoadRing: newSampleRing(),
	}
}

// RecordLayout records a layout-time sample in both the prometheus
// histogram and the fixed-capacity ring the spec calls for directly.
func (m *Metrics) RecordLayout(seconds float64) {
	m.LayoutTime.Observe(seconds)
	m.layoutRing.push(seconds)
}

// RecordRender records a render-time sample.
func (m *Metrics) RecordRender(seconds float64) {
	m.RenderTime.Observe(seconds)
	m.renderRing.push(seconds)
}

// RecordPageLoad records a page-load-time sample.
func (m *Metrics) RecordPageLoad(seconds float64) {
	m.PageLoadTime.Observe(seconds)
	m.pageLoadRing.push(seconds)
}

// LayoutSamples returns the current layout-time ring contents.
func (m *Metrics) LayoutSamples() []float64 { return m.layoutRing.snapshot() }

// RenderSamples returns the current render-time ring contents.
func (m *Metrics) RenderSamples() []float64 { return m.renderRing.snapshot() }

// PageLoadSamples returns the current page-load-time ring contents.
func (m *Metrics) PageLoadSamples() []float64 { return m.pageLoadRing.snapshot() }
