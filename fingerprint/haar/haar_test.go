package haar

import (
	"image"
	"math"
	"testing"
)

const epsilon = 0.0000001

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Test coefficient arithmetic.
func TestCoef(t *testing.T) {
	coef := Coef{1, 2, 3}
	copyCoef := coef.Copy()
	if copyCoef != (Coef{1, 2, 3}) {
		t.Errorf("Coef not a copy (%v instead of %v)", copyCoef, coef)
	}

	offset := Coef{2, 4, 6}
	coef.Add(offset)
	if coef != (Coef{3, 6, 9}) {
		t.Errorf("Addition failed, result: %v", coef)
	}

	coef.Subtract(offset)
	if coef != (Coef{1, 2, 3}) {
		t.Errorf("Subtraction failed, result: %v", coef)
	}

	coef.Divide(2)
	if coef != (Coef{.5, 1, 1.5}) {
		t.Errorf("Division failed, result: %v", coef)
	}
}

func TestCoefAbs(t *testing.T) {
	coef := Coef{-1, 2, -3}
	if coef.Abs() != (Coef{1, 2, 3}) {
		t.Errorf("Abs failed, result: %v", coef.Abs())
	}
}

// A gray pixel has R=G=B, so the Y channel carries the full (scaled)
// value. The I coefficient is exactly zero, and Q picks up a tiny
// residual from the published constants (0.211-0.523+0.311 = -0.001)
// rather than an exact zero; that asymmetry is a property of the
// spec's rounded YIQ matrix, not a bug.
func TestColorToCoefGray(t *testing.T) {
	const v = 128.0
	coef := colorToCoef(grayColor{v})
	wantY := v / 256.0
	if !closeEnough(coef[0], wantY) {
		t.Errorf("Y = %v, want %v", coef[0], wantY)
	}
	if !closeEnough(coef[1], 0) {
		t.Errorf("I = %v, want ~0", coef[1])
	}
	wantQ := -0.001 * wantY
	if !closeEnough(coef[2], wantQ) {
		t.Errorf("Q = %v, want %v", coef[2], wantQ)
	}
}

// grayColor implements color.Color as a flat R=G=B=A=v colour so tests
// can drive colorToCoef without importing image/color's Gray, whose
// gamma table would make the expected values harder to state exactly.
type grayColor struct{ v float64 }

func (g grayColor) RGBA() (r, g2, b, a uint32) {
	c := uint32(g.v) * 0x101
	return c, c, c, 0xffff
}

func TestEvenUp(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {128, 128}, {127, 128},
	}
	for _, c := range cases {
		if got := evenUp(c.in); got != c.want {
			t.Errorf("evenUp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

// Essentially a 1D Haar Wavelet test, on the Y channel only (see
// TestColorToCoefGray for why I/Q aren't exactly zero for gray input).
func TestTransformSingleRow(t *testing.T) {
	input := &image.Gray{
		Pix:    []uint8{4, 2, 5, 5},
		Stride: 4,
		Rect:   image.Rect(0, 0, 4, 1)}

	output := Transform(input)

	wantY := []float64{8.0 / 256, -2.0 / 256, (2 / math.Sqrt2) / 256, 0}
	for i, want := range wantY {
		if got := output.Coefs[i][0]; !closeEnough(got, want) {
			t.Errorf("Y[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestTransformMatrix4x4(t *testing.T) {
	input := &image.Gray{
		Pix: []uint8{
			1, 2, 3, 4,
			5, 6, 7, 8,
			9, 10, 11, 12,
			13, 14, 15, 16},
		Stride: 4,
		Rect:   image.Rect(0, 0, 4, 4)}

	output := Transform(input)
	if output.Width != 4 || output.Height != 4 {
		t.Fatalf("unexpected dims %dx%d", output.Width, output.Height)
	}

	wantY := []float64{
		34, -4, -math.Sqrt2, -math.Sqrt2,
		-16, 0, 0, 0,
		-4 * math.Sqrt2, 0, 0, 0,
		-4 * math.Sqrt2, 0, 0, 0,
	}
	for i, want := range wantY {
		if got := output.Coefs[i][0]; !closeEnough(got, want/256) {
			t.Errorf("Y[%d] = %v, want %v", i, got, want/256)
		}
	}
}

// Odd dimensions are rounded up, not trimmed: the result must still be
// exactly divisible into the halving passes the transform performs.
func TestTransformOddDimensions(t *testing.T) {
	input := &image.Gray{
		Pix:    []uint8{1, 2, 3},
		Stride: 3,
		Rect:   image.Rect(0, 0, 3, 1)}

	output := Transform(input)
	if output.Width != 4 {
		t.Errorf("Width = %d, want 4", output.Width)
	}
}
