package app

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/aptdec/internal/apt"
	"github.com/large-farva/aptdec/internal/config"
	"github.com/large-farva/aptdec/internal/wavio"
)

func testEnv(out *bytes.Buffer) Env {
	cfg := config.Default()
	cfg.Orbit.CacheDir = ""
	cfg.Orbit.TLEURL = ""
	return Env{Cfg: cfg, Stdout: out}
}

func synthFile(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pass.wav")
	err := Synth(Env{}, SynthOptions{Output: path, Rate: 11025, Duration: time.Duration(seconds * float64(time.Second))})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func gray(img image.Image, x, y int) uint32 {
	r, _, _, _ := img.At(x, y).RGBA()
	return r
}

func TestDecodeWritesPNG(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 4)
	var out bytes.Buffer
	if err := Decode(context.Background(), testEnv(&out), DecodeOptions{Input: in}); err != nil {
		t.Fatal(err)
	}
	want := strings.TrimSuffix(in, ".wav") + ".png"
	if !strings.Contains(out.String(), "wrote "+want) {
		t.Errorf("stdout = %q", out.String())
	}
	img := readPNG(t, want)
	if b := img.Bounds(); b.Dx() != apt.LinePixels || b.Dy() < 7 || b.Dy() > 8 {
		t.Errorf("bounds = %v", b)
	}
}

func TestDecodeRotateYes(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 3)
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.png")
	turned := filepath.Join(dir, "turned.png")
	env := testEnv(&bytes.Buffer{})
	if err := Decode(context.Background(), env, DecodeOptions{Input: in, Output: plain, Rotate: "no"}); err != nil {
		t.Fatal(err)
	}
	if err := Decode(context.Background(), env, DecodeOptions{Input: in, Output: turned, Rotate: "yes"}); err != nil {
		t.Fatal(err)
	}

	a, b := readPNG(t, plain), readPNG(t, turned)
	h := a.Bounds().Dy()
	const ch = apt.ChannelPixels
	for _, y := range []int{0, h / 2, h - 1} {
		for _, x := range []int{0, 10, 500, ch - 1, ch, ch + 100, 2*ch - 1} {
			src := ch - 1 - x
			if x >= ch {
				src = 3*ch - 1 - x
			}
			if got, want := gray(b, x, y), gray(a, src, h-1-y); got != want {
				t.Fatalf("rotated (%d,%d) = %d, want original (%d,%d) = %d", x, y, got, src, h-1-y, want)
			}
		}
	}
}

func TestDecodeStepsAndNoSync(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 2)
	steps := filepath.Join(t.TempDir(), "steps")
	var out bytes.Buffer
	err := Decode(context.Background(), testEnv(&out), DecodeOptions{Input: in, StepsDir: steps, NoSync: true, Method: "fft"})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(steps)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(apt.Steps) {
		t.Errorf("%d step files, want %d", len(entries), len(apt.Steps))
	}
	if !strings.Contains(out.String(), "(0 synced)") {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestDecodeAutoRotateWithoutElements(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 2)
	var out bytes.Buffer
	err := Decode(context.Background(), testEnv(&out), DecodeOptions{
		Input:     in,
		Rotate:    "auto",
		Satellite: "NOAA 19",
		TLEFile:   filepath.Join(t.TempDir(), "missing.txt"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), "synced)") {
		t.Errorf("rotated without orbital elements: %q", out.String())
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 1)
	env := testEnv(&bytes.Buffer{})
	usage := []DecodeOptions{
		{},
		{Input: in, Rotate: "sideways"},
		{Input: in, Rotate: "auto"},
		{Input: in, Profile: "turbo"},
		{Input: in, Method: "guess"},
		{Input: in, Rotate: "auto", Satellite: "METEOR", Start: time.Now()},
		{Input: in, Remote: "http://127.0.0.1:1", Rotate: "auto", Satellite: "NOAA-18"},
	}
	for i, opts := range usage {
		if err := Decode(context.Background(), env, opts); !IsUsage(err) {
			t.Errorf("case %d: err = %v, want usage error", i, err)
		}
	}

	short := synthFile(t, 0.2)
	if err := Decode(context.Background(), env, DecodeOptions{Input: short}); err == nil || IsUsage(err) {
		t.Errorf("short recording: err = %v", err)
	}
	if err := Decode(context.Background(), env, DecodeOptions{Input: filepath.Join(t.TempDir(), "none.wav")}); err == nil {
		t.Error("missing input accepted")
	}
}

func TestResampleKeepsModTime(t *testing.T) {
	t.Parallel()
	in := synthFile(t, 1)
	stamp := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	if err := os.Chtimes(in, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "48k.wav")
	var stdout bytes.Buffer
	if err := Resample(context.Background(), testEnv(&stdout), ResampleOptions{Input: in, Output: out, Rate: 48000}); err != nil {
		t.Fatal(err)
	}
	sig, info, err := wavio.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Rate != 48000 || info.BitDepth != 16 || sig.Len() < 47998 || sig.Len() > 48002 {
		t.Errorf("info = %+v, %d samples", info, sig.Len())
	}
	fi, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(stamp) {
		t.Errorf("mtime = %v, want %v", fi.ModTime(), stamp)
	}

	if err := Resample(context.Background(), testEnv(&stdout), ResampleOptions{Input: in, Output: out}); !IsUsage(err) {
		t.Errorf("missing rate: err = %v", err)
	}
}

func TestSynthRejects(t *testing.T) {
	t.Parallel()
	if err := Synth(Env{}, SynthOptions{Output: filepath.Join(t.TempDir(), "x.wav"), Rate: 0, Duration: time.Second}); !IsUsage(err) {
		t.Errorf("zero rate: err = %v", err)
	}
	if err := Synth(Env{}, SynthOptions{Output: "x.wav", Rate: 11025}); !IsUsage(err) {
		t.Errorf("zero duration: err = %v", err)
	}
}

func TestVersionInfo(t *testing.T) {
	t.Parallel()
	v := VersionInfo()
	if v["version"] != Version || !strings.HasPrefix(v["go_version"], "go") {
		t.Errorf("VersionInfo = %v", v)
	}
}
