package apt

import "slices"

// Frame is the set of line start positions, in samples, chosen for a
// signal. Synced[i] reports whether line i starts on a detected sync peak
// or was dead-reckoned from its neighbour.
type Frame struct {
	Starts []int
	Synced []bool

	// NoSync is set when no peaks were available and the lines were cut
	// at fixed intervals from sample 0.
	NoSync bool
}

// Lines returns the number of lines.
func (f Frame) Lines() int { return len(f.Starts) }

// SyncedLines returns how many lines start on a detected peak.
func (f Frame) SyncedLines() int {
	n := 0
	for _, s := range f.Synced {
		if s {
			n++
		}
	}
	return n
}

// FixedFrame cuts sigLen samples into whole lines of lineLen samples from
// the start of the signal, dropping the trailing partial line.
func FixedFrame(sigLen, lineLen int) Frame {
	if lineLen <= 0 || sigLen < lineLen {
		return Frame{}
	}
	n := sigLen / lineLen
	f := Frame{Starts: make([]int, n), Synced: make([]bool, n)}
	for i := range f.Starts {
		f.Starts[i] = i * lineLen
	}
	return f
}

// FrameLines places lines of lineLen samples on a signal of sigLen samples
// using the sync peaks, which must be ordered by position as FindPeaks
// returns them.
//
// The strongest peak anchors the grid. From there the framer steps one line
// at a time in both directions and starts each line on the peak nearest the
// expected position, if one lies within tolerance samples; otherwise it
// keeps the expected position. Line length never changes, so dropped syncs
// are bridged and peaks off the grid are ignored. A start that falls up to
// tolerance samples outside the signal is pulled back in. With no peaks the
// result is FixedFrame with NoSync set.
func FrameLines(sigLen int, peaks []Peak, lineLen, tolerance int) Frame {
	if len(peaks) == 0 || lineLen <= 0 {
		f := FixedFrame(sigLen, lineLen)
		f.NoSync = true
		return f
	}

	tolerance = max(0, min(tolerance, lineLen/2-1))
	anchor := peaks[0]
	for _, p := range peaks[1:] {
		if p.Strength > anchor.Strength {
			anchor = p
		}
	}
	fit := func(pos int) (int, bool) {
		switch {
		case pos < 0 && pos >= -tolerance:
			return 0, true
		case pos+lineLen > sigLen && pos+lineLen-sigLen <= tolerance && sigLen >= lineLen:
			return sigLen - lineLen, true
		case pos >= 0 && pos+lineLen <= sigLen:
			return pos, true
		}
		return 0, false
	}

	var before, after []int
	var beforeSync, afterSync []bool

	for pos := anchor.Pos; ; {
		next, synced := snap(peaks, pos-lineLen, tolerance)
		start, ok := fit(next)
		if !ok {
			break
		}
		before = append(before, start)
		beforeSync = append(beforeSync, synced)
		pos = next
	}
	for pos, synced := anchor.Pos, true; ; {
		start, ok := fit(pos)
		if !ok {
			break
		}
		after = append(after, start)
		afterSync = append(afterSync, synced)
		pos, synced = snap(peaks, pos+lineLen, tolerance)
	}

	slices.Reverse(before)
	slices.Reverse(beforeSync)
	return Frame{
		Starts: append(before, after...),
		Synced: append(beforeSync, afterSync...),
	}
}

// snap returns the position of the peak nearest want if it is within
// tolerance, or want itself.
func snap(peaks []Peak, want, tolerance int) (int, bool) {
	i, _ := slices.BinarySearchFunc(peaks, want, func(p Peak, pos int) int { return p.Pos - pos })
	best, bestDist := want, tolerance+1
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(peaks) {
			continue
		}
		if d := abs(peaks[j].Pos - want); d < bestDist {
			best, bestDist = peaks[j].Pos, d
		}
	}
	return best, bestDist <= tolerance
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
