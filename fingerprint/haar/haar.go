/*
Package haar provides the 2-D Haar wavelet transform used by the
fingerprint builder: an 8-bit RGBA image is converted to YIQ and
reduced, row-wise then column-wise, into a matrix of detail
coefficients. The technique, and the weighting it feeds downstream,
come from "Fast Multiresolution Image Querying" (Jacobs, Finkelstein,
Salesin).
*/
package haar

import (
	"image"
	"image/color"
	"math"
)

// ColourChannels is the number of channels for one colour. We always
// work in YIQ, so this is 3.
const ColourChannels = 3

// Coef is the union of coefficients for all channels at one matrix
// position.
type Coef [ColourChannels]float64

// Copy returns a copy of coef.
func (coef Coef) Copy() Coef {
	return coef
}

// Add adds another coefficient in place.
func (coef *Coef) Add(offset Coef) {
	for index := range coef {
		coef[index] += offset[index]
	}
}

// Subtract subtracts another coefficient in place, channel by channel.
func (coef *Coef) Subtract(offset Coef) {
	for index := range coef {
		coef[index] -= offset[index]
	}
}

// Divide divides all elements of the coefficient by a value, in place.
func (coef *Coef) Divide(value float64) {
	factor := 1.0 / value
	for index := range coef {
		coef[index] *= factor // Slightly faster.
	}
}

// Abs returns the per-channel absolute value of coef.
func (coef Coef) Abs() Coef {
	var out Coef
	for index := range coef {
		out[index] = math.Abs(coef[index])
	}
	return out
}

// Matrix is the result of the Haar transform, a two-dimensional matrix of
// coefficients.
type Matrix struct {
	// Coefs is the slice of coefficients resulting from a forward 2D Haar
	// transform. The position of a coefficient (x,y) is (y * Width + x).
	Coefs []Coef

	// The number of columns in the matrix.
	Width uint

	// The number of rows in the matrix.
	Height uint
}

// At returns the coefficient at column x, row y.
func (m Matrix) At(x, y int) Coef {
	return m.Coefs[y*int(m.Width)+x]
}

// colorToCoef converts a native Color type into a YIQ Coef, using the
// fixed colour matrix, scaled by 1/256 to bring 8-bit channel values
// into a roughly [0,1] range.
func colorToCoef(gen color.Color) Coef {
	r32, g32, b32, _ := gen.RGBA()
	r, g, b := float64(r32>>8), float64(g32>>8), float64(b32>>8)
	const scale = 1.0 / 256.0
	return Coef{
		(0.299*r + 0.587*g + 0.114*b) * scale,
		(0.596*r - 0.274*g - 0.322*b) * scale,
		(0.211*r - 0.523*g + 0.311*b) * scale,
	}
}

// evenUp rounds n up to the nearest even value; n below 2 is returned
// unchanged. A source image that
// arrives with an odd dimension gets its last row/column duplicated
// rather than dropped.
func evenUp(n int) int {
	if n < 2 {
		return n
	}
	return (n + 1) &^ 1
}

// Transform performs a forward 2D Haar transform on the provided image
// after converting it to YIQ space. Width and Height of the result are
// img's bounds rounded up to even (see evenUp); for the fingerprint
// builder, which always transforms a pre-resized IMAGE_SCALE x
// IMAGE_SCALE image, both are already even and this is a no-op.
func Transform(img image.Image) Matrix {
	bounds := img.Bounds()
	width := evenUp(bounds.Max.X - bounds.Min.X)
	height := evenUp(bounds.Max.Y - bounds.Min.Y)
	matrix := Matrix{
		Coefs:  make([]Coef, width*height),
		Width:  uint(width),
		Height: uint(height)}

	// Convert colours to coefficients, clamping to the source's last
	// row/column when we rounded a dimension up.
	for row := 0; row < height; row++ {
		srcY := bounds.Min.Y + row
		if srcY >= bounds.Max.Y {
			srcY = bounds.Max.Y - 1
		}
		for column := 0; column < width; column++ {
			srcX := bounds.Min.X + column
			if srcX >= bounds.Max.X {
				srcX = bounds.Max.X - 1
			}
			matrix.Coefs[row*width+column] = colorToCoef(img.At(srcX, srcY))
		}
	}

	// Apply 1D Haar transform on rows.
	tempRow := make([]Coef, width)
	for row := 0; row < height; row++ {
		for step := width / 2; step >= 1; step /= 2 {
			for column := 0; column < step; column++ {
				high := matrix.Coefs[row*width+2*column]
				low := high
				offset := matrix.Coefs[row*width+2*column+1]
				high.Add(offset)
				low.Subtract(offset)
				high.Divide(math.Sqrt2)
				low.Divide(math.Sqrt2)
				tempRow[column] = high
				tempRow[column+step] = low
			}
			for column := 0; column < width; column++ {
				matrix.Coefs[row*width+column] = tempRow[column]
			}
		}
	}

	// Apply 1D Haar transform on columns.
	tempColumn := make([]Coef, height)
	for column := 0; column < width; column++ {
		for step := height / 2; step >= 1; step /= 2 {
			for row := 0; row < step; row++ {
				high := matrix.Coefs[(2*row)*width+column]
				low := high
				offset := matrix.Coefs[(2*row+1)*width+column]
				high.Add(offset)
				low.Subtract(offset)
				high.Divide(math.Sqrt2)
				low.Divide(math.Sqrt2)
				tempColumn[row] = high
				tempColumn[row+step] = low
			}
			for row := 0; row < height; row++ {
				matrix.Coefs[row*width+column] = tempColumn[row]
			}
		}
	}

	return matrix
}
