package asset

import (
	"github.com/chewxy/math32"

	"gyroview/internal/geom"
)

const (
	defaultFOV     float32 = 75
	framingPadding float32 = 1.5
)

// FrameDistance returns the per-axis camera coordinate d such that a camera at (d, d, d) looking at
// the origin with a vertical field of view of fovDeg degrees fits an object of extent maxDim.
func FrameDistance(maxDim, fovDeg float32) float32 {
	if !(maxDim > 0) {
		maxDim = 1
	}
	if !(fovDeg > 0 && fovDeg < 180) {
		fovDeg = defaultFOV
	}
	half := geom.DegToRad(fovDeg) / 2
	return (maxDim / 2) / math32.Tan(half) * framingPadding
}
