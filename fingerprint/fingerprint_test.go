package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/fingerprint/haar"
)

func uniformImage(w, h int, c color.Color) image.Image {
	rect := image.Rect(0, 0, w, h)
	img := image.NewRGBA(rect)
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// S5: quickselect thresholds. Given the 12 channel-1 magnitudes from
// the spec, coef_threshold(k=4, n=1) must return a value with exactly 4
// magnitudes >= it.
func TestCoefThresholdQuickSelect(t *testing.T) {
	coefs := []haar.Coef{
		{0, -5}, {0, 2}, {0, -7.5}, {0, 1}, {0, 0}, {0, 6},
		{0, -3}, {0, -9}, {0, 4.7}, {0, 4.7}, {0, 8}, {0, -2.2},
	}
	threshold := coefThreshold(coefs, 4, 1)

	count := 0
	for _, c := range coefs {
		magnitude := c[1]
		if magnitude < 0 {
			magnitude = -magnitude
		}
		if magnitude >= threshold {
			count++
		}
	}
	if count != 4 {
		t.Errorf("expected exactly 4 magnitudes >= %v, got %d", threshold, count)
	}
}

// Property 1: deterministic fingerprint. dhash, histogram and
// thresholds must be identical across repeated runs on the same bytes.
func TestCreateDeterministic(t *testing.T) {
	img := uniformImage(64, 64, color.RGBA{12, 200, 40, 255})

	h1 := Create(img)
	h2 := Create(img)

	if h1.DHash != h2.DHash {
		t.Errorf("dhash not deterministic: %x vs %x", h1.DHash, h2.DHash)
	}
	if h1.Histogram != h2.Histogram {
		t.Errorf("histogram not deterministic: %x vs %x", h1.Histogram, h2.Histogram)
	}
	if h1.Thresholds != h2.Thresholds {
		t.Errorf("thresholds not deterministic: %v vs %v", h1.Thresholds, h2.Thresholds)
	}
}

func TestCreateRatio(t *testing.T) {
	img := uniformImage(200, 100, color.RGBA{1, 2, 3, 255})
	h := Create(img)
	if h.Ratio != 2.0 {
		t.Errorf("Ratio = %v, want 2.0", h.Ratio)
	}
}

func TestCreateMatrixSize(t *testing.T) {
	img := uniformImage(40, 40, color.RGBA{9, 9, 9, 255})
	h := Create(img)
	if got := len(h.Matrix.Coefs); got != int(ImageScale*ImageScale) {
		t.Errorf("matrix has %d coefs, want %d", got, ImageScale*ImageScale)
	}
}

func TestHashEncodeDecodeRoundTrip(t *testing.T) {
	img := uniformImage(80, 50, color.RGBA{40, 90, 200, 255})
	h := Create(img)

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	h.Encode(w)
	if w.Err() != nil {
		t.Fatalf("encode failed: %v", w.Err())
	}

	r := codec.NewReader(&buf)
	h2 := Decode(r)
	if r.Err() != nil {
		t.Fatalf("decode failed: %v", r.Err())
	}

	if h.Ratio != h2.Ratio || h.DHash != h2.DHash || h.Histogram != h2.Histogram || h.Thresholds != h2.Thresholds {
		t.Errorf("round trip mismatch:\n%+v\n%+v", h, h2)
	}
	if len(h.Matrix.Coefs) != len(h2.Matrix.Coefs) {
		t.Fatalf("matrix length mismatch: %d vs %d", len(h.Matrix.Coefs), len(h2.Matrix.Coefs))
	}
	for i := range h.Matrix.Coefs {
		if h.Matrix.Coefs[i] != h2.Matrix.Coefs[i] {
			t.Fatalf("coef %d mismatch: %v vs %v", i, h.Matrix.Coefs[i], h2.Matrix.Coefs[i])
		}
	}
}
