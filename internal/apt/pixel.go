package apt

import (
	"math"

	"github.com/large-farva/aptdec/internal/dsp"
)

// MidGray is the level every pixel takes when the signal has no range.
const MidGray = 128

// MapPixels scales samples linearly from their overall [min, max] range to
// 0..255, rounding to the nearest level. degenerate is true when min equals
// max; every pixel is then MidGray.
func MapPixels(samples []float32) (pixels []uint8, degenerate bool) {
	pixels = make([]uint8, len(samples))
	lo, hi, ok := dsp.MinMax(samples)
	if !ok {
		return pixels, true
	}
	if lo == hi {
		for i := range pixels {
			pixels[i] = MidGray
		}
		return pixels, true
	}

	scale := 255 / (float64(hi) - float64(lo))
	for i, v := range samples {
		x := math.Round((float64(v) - float64(lo)) * scale)
		pixels[i] = uint8(min(max(x, 0), 255))
	}
	return pixels, false
}
