package imageio

import (
	"fmt"

	"github.com/large-farva/aptdec/internal/apt"
)

// Rotate turns the image upside down for a northbound pass. Reversing every
// pixel would also swap the two channels, so each line is reversed and its
// channel halves exchanged; channel A stays on the left and both channels
// keep their row.
func Rotate(lines []apt.Line, channelPixels int) ([]apt.Line, error) {
	out := make([]apt.Line, len(lines))
	for i, l := range lines {
		if channelPixels <= 0 || len(l) != 2*channelPixels {
			return nil, fmt.Errorf("line %d has %d pixels, want two channels of %d", i, len(l), channelPixels)
		}
		rev := make(apt.Line, len(l))
		for j, v := range l {
			rev[len(l)-1-j] = v
		}
		out[len(lines)-1-i] = reinterleave(rev, channelPixels)
	}
	return out, nil
}

// reinterleave swaps every pair of adjacent chunks of size n:
// a1 a2 b1 b2 a3 a4 b3 b4 becomes b1 b2 a1 a2 b3 b4 a3 a4 for n = 2.
// A trailing unpaired chunk is kept in place.
func reinterleave(v []uint8, n int) []uint8 {
	out := make([]uint8, len(v))
	i := 0
	for ; i+2*n <= len(v); i += 2 * n {
		copy(out[i:], v[i+n:i+2*n])
		copy(out[i+n:], v[i:i+n])
	}
	copy(out[i:], v[i:])
	return out
}
