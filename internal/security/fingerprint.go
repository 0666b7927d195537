package security

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/geeknik/citadel-browser/internal/settingsstore"
)

// NoiseSource produces deterministic per-origin noise for canvas and
// audio buffers (spec §4.2). Stable within a session for a given origin;
// indistinguishable across origins because the seed mixes the origin
// string into the session salt.
type NoiseSource struct {
	sessionSalt [32]byte
}

// NewNoiseSource derives a session-scoped source from a random salt. The
// caller generates sessionSalt once per browsing session (crypto/rand).
func NewNoiseSource(sessionSalt [32]byte) *NoiseSource {
	return &NoiseSource{sessionSalt: sessionSalt}
}

// seed mixes origin into the session salt via SHA-256, giving a
// deterministic 32-byte stream key.
func (n *NoiseSource) seed(origin string) [32]byte {
	h := sha256.New()
	h.Write(n.sessionSalt[:])
	h.Write([]byte(origin))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CanvasNoise returns a deterministic byte at (x, y) within [0, amplitude]
// where amplitude is capped at 0.01 * 255 per spec §4.2. Repeated calls
// with the same arguments return the same value.
func (n *NoiseSource) CanvasNoise(origin string, x, y, channel int) byte {
	seed := n.seed(origin)
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(x))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(y))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(channel))

	h := sha256.New()
	h.Write(seed[:])
	h.Write(buf[:])
	digest := h.Sum(nil)

	const maxAmplitude = 0.01 * 255
	return byte(float64(digest[0]) / 255.0 * maxAmplitude)
}

// AudioNoise returns deterministic noise in [-1, 1] for a frequency-bin
// index, using the same seeded treatment as CanvasNoise.
func (n *NoiseSource) AudioNoise(origin string, bin int) float64 {
	seed := n.seed(origin)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(bin))

	h := sha256.New()
	h.Write(seed[:])
	h.Write(buf[:])
	digest := h.Sum(nil)

	v := binary.LittleEndian.Uint32(digest[:4])
	normalized := float64(v) / float64(math.MaxUint32)
	return normalized*2 - 1
}

// NavigatorProfile is the generalized navigator surface (spec §4.2).
type NavigatorProfile struct {
	UserAgent           string
	HardwareConcurrency int
	DeviceMemoryGB      int
	Platform            string
	CookieEnabled       bool
	DoNotTrack          string
}

// ScreenProfile is the rounded/fixed screen metrics surface.
type ScreenProfile struct {
	Width  int
	Height int
}

var standardResolutions = []ScreenProfile{
	{Width: 1366, Height: 768},
	{Width: 1440, Height: 900},
	{Width: 1536, Height: 864},
	{Width: 1920, Height: 1080},
}

// GeneralizeNavigator produces the navigator fields exposed to sandboxed
// code, honoring the real hardware values only to the extent the
// fingerprint level allows.
func GeneralizeNavigator(level settingsstore.FingerprintLevel, realConcurrency, realMemoryGB int) NavigatorProfile {
	p := NavigatorProfile{
		UserAgent:           "Mozilla/5.0 (Citadel)",
		HardwareConcurrency: roundConcurrency(realConcurrency),
		DeviceMemoryGB:      roundDeviceMemory(realMemoryGB),
		Platform:            "Linux x86_64",
		CookieEnabled:       false,
		DoNotTrack:          "1",
	}
	if level == settingsstore.FingerprintNone {
		p.HardwareConcurrency = realConcurrency
		p.DeviceMemoryGB = realMemoryGB
		p.CookieEnabled = true
		p.DoNotTrack = ""
	}
	return p
}

func roundConcurrency(n int) int {
	if n <= 4 {
		return 4
	}
	return 8
}

func roundDeviceMemory(gb int) int {
	switch {
	case gb <= 4:
		return 4
	case gb <= 8:
		return 8
	default:
		return 16
	}
}

// GeneralizeScreen returns the screen metrics for level: fixed
// {1920,1080} at Maximum, nearest standard resolution otherwise.
func GeneralizeScreen(level settingsstore.FingerprintLevel, realWidth, realHeight int) ScreenProfile {
	if level == settingsstore.FingerprintMaximum {
		return ScreenProfile{Width: 1920, Height: 1080}
	}
	best := standardResolutions[0]
	bestDist := distance(best, realWidth, realHeight)
	for _, r := range standardResolutions[1:] {
		if d := distance(r, realWidth, realHeight); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func distance(r ScreenProfile, w, h int) int {
	dw := r.Width - w
	dh := r.Height - h
	return dw*dw + dh*dh
}

// WebGLProfile is the reported RENDERER/VENDOR plus rounded parameters.
type WebGLProfile struct {
	Renderer       string
	Vendor         string
	MaxTextureSize int
	Extensions     []string
}

var webglWhitelist = []string{"ANGLE_instanced_arrays", "OES_texture_float", "WEBGL_debug_renderer_info"}

// GeneralizeWebGL returns the policy-standard WebGL surface.
func GeneralizeWebGL() WebGLProfile {
	return WebGLProfile{
		Renderer:       "ANGLE (Generic)",
		Vendor:         "Generic Vendor",
		MaxTextureSize: 16384,
		Extensions:     append([]string(nil), webglWhitelist...),
	}
}

// TransformSet reports which transform families are active at level (spec
// §4.2: None is a no-op; Basic is canvas+navigator; Medium adds
// WebGL+audio; Maximum enables all plus screen).
type TransformSet struct {
	Canvas    bool
	Navigator bool
	WebGL     bool
	Audio     bool
	Screen    bool
}

// TransformsFor returns which transform families apply at level.
func TransformsFor(level settingsstore.FingerprintLevel) TransformSet {
	switch level {
	case settingsstore.FingerprintBasic:
		return TransformSet{Canvas: true, Navigator: true}
	case settingsstore.FingerprintMedium:
		return TransformSet{Canvas: true, Navigator: true, WebGL: true, Audio: true}
	case settingsstore.FingerprintMaximum:
		return TransformSet{Canvas: true, Navigator: true, WebGL: true, Audio: true, Screen: true}
	default:
		return TransformSet{}
	}
}
