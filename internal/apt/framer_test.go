package apt

import (
	"slices"
	"testing"
)

func peaksAt(pos ...int) []Peak {
	p := make([]Peak, len(pos))
	for i, x := range pos {
		p[i] = Peak{Pos: x, Strength: 10}
	}
	return p
}

func TestFrameLinesRegular(t *testing.T) {
	t.Parallel()
	f := FrameLines(950, peaksAt(5, 105, 205, 305, 405, 505, 605, 705, 805), 100, 5)
	want := []int{5, 105, 205, 305, 405, 505, 605, 705, 805}
	if !slices.Equal(f.Starts, want) {
		t.Errorf("Starts = %v, want %v", f.Starts, want)
	}
	if f.SyncedLines() != len(want) || f.NoSync {
		t.Errorf("synced = %d, NoSync = %v", f.SyncedLines(), f.NoSync)
	}
}

func TestFrameLinesDroppedSync(t *testing.T) {
	t.Parallel()
	// Peaks for lines 3 and 4 are missing and one spurious peak sits
	// halfway between lines.
	peaks := peaksAt(0, 101, 199, 450, 502, 600)
	peaks[4].Strength = 20
	f := FrameLines(700, peaks, 100, 5)
	wantStarts := []int{0, 101, 199, 302, 402, 502, 600}
	wantSynced := []bool{true, true, true, false, false, true, true}
	if !slices.Equal(f.Starts, wantStarts) {
		t.Errorf("Starts = %v, want %v", f.Starts, wantStarts)
	}
	if !slices.Equal(f.Synced, wantSynced) {
		t.Errorf("Synced = %v, want %v", f.Synced, wantSynced)
	}
}

func TestFrameLinesClampsEdges(t *testing.T) {
	t.Parallel()
	f := FrameLines(400, peaksAt(0, 99, 201, 302), 100, 5)
	for _, s := range f.Starts {
		if s < 0 || s+100 > 400 {
			t.Errorf("line at %d does not fit the signal", s)
		}
	}
	if f.Lines() != 4 {
		t.Errorf("Lines() = %d, want 4 (starts %v)", f.Lines(), f.Starts)
	}
	if f.Starts[3] != 300 {
		t.Errorf("last start = %d, want 300", f.Starts[3])
	}
}

func TestFrameLinesNoPeaks(t *testing.T) {
	t.Parallel()
	f := FrameLines(1050, nil, 100, 5)
	if !f.NoSync {
		t.Error("NoSync not set")
	}
	if f.Lines() != 10 || f.Starts[9] != 900 || f.SyncedLines() != 0 {
		t.Errorf("Starts = %v", f.Starts)
	}
}

func TestFixedFrame(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sigLen, lineLen, lines int
	}{
		{0, 100, 0},
		{99, 100, 0},
		{100, 100, 1},
		{374400, 6240, 60},
		{374399, 6240, 59},
	}
	for _, tt := range tests {
		f := FixedFrame(tt.sigLen, tt.lineLen)
		if f.Lines() != tt.lines {
			t.Errorf("FixedFrame(%d, %d) = %d lines, want %d", tt.sigLen, tt.lineLen, f.Lines(), tt.lines)
		}
		for i, s := range f.Starts {
			if s != i*tt.lineLen {
				t.Fatalf("line %d starts at %d", i, s)
			}
		}
	}
}
