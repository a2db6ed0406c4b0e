package imageio

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/large-farva/aptdec/internal/apt"
)

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()
	lines := []apt.Line{
		{0, 64, 128, 255},
		{10, 20, 30, 40},
		{255, 254, 253, 252},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, lines); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("bounds = %v", b)
	}
	for y, l := range lines {
		for x, want := range l {
			r, _, _, _ := img.At(x, y).RGBA()
			if got := uint8(r >> 8); got != want {
				t.Errorf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestImageRejects(t *testing.T) {
	t.Parallel()
	if _, err := Image(nil); !errors.Is(err, ErrNoLines) {
		t.Errorf("nil lines: err = %v", err)
	}
	if _, err := Image([]apt.Line{{}}); !errors.Is(err, ErrNoLines) {
		t.Errorf("empty line: err = %v", err)
	}
	if _, err := Image([]apt.Line{{1, 2}, {1}}); err == nil {
		t.Error("ragged lines accepted")
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "pass.png")
	if err := WriteFile(path, []apt.Line{{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.DecodeConfig(f); err != nil {
		t.Fatal(err)
	}

	bad := filepath.Join(t.TempDir(), "empty.png")
	if err := WriteFile(bad, nil); !errors.Is(err, ErrNoLines) {
		t.Errorf("err = %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("failed encode left a file behind")
	}
}

func TestReinterleave(t *testing.T) {
	t.Parallel()
	in := make([]uint8, 40)
	for i := range in {
		in[i] = uint8(i + 1)
	}
	want := []uint8{
		6, 7, 8, 9, 10, 1, 2, 3, 4, 5,
		16, 17, 18, 19, 20, 11, 12, 13, 14, 15,
		26, 27, 28, 29, 30, 21, 22, 23, 24, 25,
		36, 37, 38, 39, 40, 31, 32, 33, 34, 35,
	}
	if got := reinterleave(in, 5); !slices.Equal(got, want) {
		t.Errorf("reinterleave = %v", got)
	}
}

func TestRotate(t *testing.T) {
	t.Parallel()
	lines := []apt.Line{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
	}
	got, err := Rotate(lines, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []apt.Line{
		{6, 5, 8, 7},
		{2, 1, 4, 3},
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("line %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !slices.Equal(lines[0], apt.Line{1, 2, 3, 4}) {
		t.Error("input modified")
	}

	twice, err := Rotate(got, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range lines {
		if !slices.Equal(twice[i], lines[i]) {
			t.Errorf("rotating twice: line %d = %v", i, twice[i])
		}
	}
}

func TestRotateRejectsWidth(t *testing.T) {
	t.Parallel()
	if _, err := Rotate([]apt.Line{{1, 2, 3}}, 2); err == nil {
		t.Error("odd width accepted")
	}
	if _, err := Rotate([]apt.Line{{1, 2}}, 0); err == nil {
		t.Error("zero channel width accepted")
	}
}
