// Package perfcore implements the layout cache, memory-pressure manager,
// and metrics from spec §4.5, keeping the system within resource bounds
// under load.
package perfcore

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Viewport is the subset of layout-affecting display state that feeds
// the cache fingerprint.
type Viewport struct {
	Width, Height int
	Zoom          float64
	DevicePixelRatio float64
}

// Fingerprint64 is the 64-bit cache key from spec §3/§4.5.
type Fingerprint64 uint64

// Fingerprint computes fingerprint(document, stylesheet, viewport, zoom,
// dpr): a deterministic hash of the node structural hash + attribute
// hash + stylesheet content hash + viewport tuple (spec §4.5). Callers
// pass precomputed structural/content hashes rather than re-walking the
// tree here, keeping this package decoupled from doctree.
func Fingerprint(documentHash, stylesheetHash uint64, vp Viewport) Fingerprint64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:8], documentHash)
	binary.LittleEndian.PutUint64(buf[8:16], stylesheetHash)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(vp.Width)<<32|uint64(vp.Height))
	binary.LittleEndian.PutUint64(buf[24:32], math.Float64bits(vp.Zoom))
	binary.LittleEndian.PutUint64(buf[32:40], math.Float64bits(vp.DevicePixelRatio))

	sum := sha256.Sum256(buf[:])
	return Fingerprint64(binary.LittleEndian.Uint64(sum[:8]))
}
