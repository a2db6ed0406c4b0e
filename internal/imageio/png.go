// Package imageio turns decoded APT lines into grayscale images.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/large-farva/aptdec/internal/apt"
)

// ErrNoLines is returned when there is nothing to draw.
var ErrNoLines = errors.New("no lines to encode")

// Image builds a grayscale image with one row per line. All lines must
// have the same width.
func Image(lines []apt.Line) (*image.Gray, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	width := len(lines[0])
	if width == 0 {
		return nil, ErrNoLines
	}
	img := image.NewGray(image.Rect(0, 0, width, len(lines)))
	for y, l := range lines {
		if len(l) != width {
			return nil, fmt.Errorf("line %d has %d pixels, want %d", y, len(l), width)
		}
		copy(img.Pix[y*img.Stride:], l)
	}
	return img, nil
}

// Encode writes lines as a PNG.
func Encode(w io.Writer, lines []apt.Line) error {
	img, err := Image(lines)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// WriteFile encodes lines to path, creating parent directories.
func WriteFile(path string, lines []apt.Line) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, lines); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
