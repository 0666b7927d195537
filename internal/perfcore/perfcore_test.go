package perfcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLRUEvictionRespectsCap(t *testing.T) {
	c := NewCache(100)
	require.True(t, c.Install(1, LayoutResult{ByteSize: 40, LastAccess: time.Now()}))
	require.True(t, c.Install(2, LayoutResult{ByteSize: 40, LastAccess: time.Now()}))
	require.True(t, c.Install(3, LayoutResult{ByteSize: 40, LastAccess: time.Now()}))

	stats := c.Stats()
	assert.LessOrEqual(t, stats.UsedBytes, int64(100))
	assert.Greater(t, stats.Evictions, int64(0))
	_, ok := c.Get(1)
	assert.False(t, ok) // oldest entry evicted first
}

func TestCacheInstallOverCapRefused(t *testing.T) {
	c := NewCache(10)
	ok := c.Install(1, LayoutResult{ByteSize: 50})
	assert.False(t, ok)
}

func TestCacheHitTouchesLRU(t *testing.T) {
	c := NewCache(100)
	c.Install(1, LayoutResult{ByteSize: 30, LastAccess: time.Now()})
	c.Install(2, LayoutResult{ByteSize: 30, LastAccess: time.Now()})

	_, ok := c.Get(1)
	require.True(t, ok)

	c.Install(3, LayoutResult{ByteSize: 30, LastAccess: time.Now()})
	c.Install(4, LayoutResult{ByteSize: 30, LastAccess: time.Now()})

	_, ok = c.Get(1)
	assert.True(t, ok, "recently touched entry should survive eviction longer than untouched ones")
}

func TestPressureLevelsFromRatio(t *testing.T) {
	assert.Equal(t, Low, levelFor(0.1))
	assert.Equal(t, Medium, levelFor(0.65))
	assert.Equal(t, High, levelFor(0.8))
	assert.Equal(t, Critical, levelFor(0.95))
}

func TestPressureManagerCriticalClearsCache(t *testing.T) {
	cache := NewCache(1000)
	cache.Install(1, LayoutResult{ByteSize: 500, LastAccess: time.Now()})

	mgr := NewPressureManager(cache, 100)
	mgr.Track(95)

	called := false
	mgr.OnBackgroundCleanupNeeded(func() { called = true })

	level := mgr.Recompute()
	assert.Equal(t, Critical, level)
	assert.True(t, called)
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestFingerprintDeterministic(t *testing.T) {
	vp := Viewport{Width: 1024, Height: 768, Zoom: 1.0, DevicePixelRatio: 2.0}
	f1 := Fingerprint(111, 222, vp)
	f2 := Fingerprint(111, 222, vp)
	f3 := Fingerprint(111, 223, vp)
	assert.Equal(t, f1, f2)
	assert.NotEqual(t, f1, f3)
}
