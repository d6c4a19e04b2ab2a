// Package fingerprint builds the compact visual fingerprint (Hash) that
// the image store and video matcher index and compare: a resize into a
// fixed-size Haar wavelet reduction, a difference hash, and a colour
// histogram. See the haar subpackage for the wavelet transform itself.
package fingerprint

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sort"

	"github.com/nfnt/resize"

	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/fingerprint/haar"
)

// ImageScale is the width and height images are resized to before the
// Haar transform. Changing it invalidates any persisted Hash/Candidate
// data, since bucket addresses are derived from it.
const ImageScale uint = 128

// TopCoefs is the number of largest-magnitude coefficients kept per
// colour channel; all others are discarded at index time.
const TopCoefs = 40

// Channels is the number of colour channels carried by a Coef (YIQ).
const Channels = haar.ColourChannels

// Hash is the visual fingerprint of one image.
type Hash struct {
	// Matrix is the IMAGE_SCALE x IMAGE_SCALE Haar-transformed YIQ
	// coefficient grid.
	Matrix haar.Matrix

	// Thresholds holds, per channel, the magnitude of the TopCoefs-th
	// largest |coefficient|. Coefficients smaller than this are not
	// indexed.
	Thresholds [Channels]float64

	// Ratio is width/height of the original (pre-resize) image.
	Ratio float64

	// DHash is the two-word difference hash: word 0 is the 8x8 Y-plane
	// diff hash, word 1 packs 8x4 Cb bits (low 32) and 8x4 Cr bits
	// (high 32).
	DHash [2]uint64

	// Histogram is the 64-bit median-quantized YCbCr histogram: 32 Y
	// bins, 16 Cb bins, 16 Cr bins.
	Histogram uint64

	// HistoMax holds the maximum bin count seen per channel. Diagnostic
	// only; it plays no part in scoring.
	HistoMax [Channels]float64
}

// Create resizes img, runs the Haar transform, and derives thresholds,
// the difference hash and the colour histogram.
func Create(img image.Image) Hash {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	var ratio float64
	if height > 0 {
		ratio = float64(width) / float64(height)
	}

	scaled := resize.Resize(ImageScale, ImageScale, img, resize.Lanczos3)
	matrix := haar.Transform(scaled)
	thresholds := coefThresholds(matrix.Coefs)
	dhash := computeDHash(img)
	histogram, histoMax := computeHistogram(scaled)

	return Hash{
		Matrix:     matrix,
		Thresholds: thresholds,
		Ratio:      ratio,
		DHash:      dhash,
		Histogram:  histogram,
		HistoMax:   histoMax,
	}
}

// coefThreshold returns the k-th largest |coefs[i][channel]| using
// randomized QuickSelect. Ties break consistently (strict inequality on
// both sides of the pivot), so equal-magnitude coefficients always land
// on the same side.
func coefThreshold(coefs []haar.Coef, k int, channel int) float64 {
	if len(coefs) == 1 {
		return math.Abs(coefs[0][channel])
	}
	pivot := math.Abs(coefs[rand.Intn(len(coefs))][channel])

	left := make([]haar.Coef, 0, len(coefs))
	right := make([]haar.Coef, 0, len(coefs))
	for _, c := range coefs {
		v := math.Abs(c[channel])
		switch {
		case v > pivot:
			left = append(left, c)
		case v < pivot:
			right = append(right, c)
		}
	}

	switch {
	case k <= len(left):
		return coefThreshold(left, k, channel)
	case k > len(coefs)-len(right):
		return coefThreshold(right, k-(len(coefs)-len(right)), channel)
	default:
		return pivot
	}
}

func coefThresholds(coefs []haar.Coef) [Channels]float64 {
	var thresholds [Channels]float64
	if len(coefs) == 0 {
		return thresholds
	}
	for c := 0; c < Channels; c++ {
		thresholds[c] = coefThreshold(coefs, TopCoefs, c)
	}
	return thresholds
}

// dHashSide is the side of the 8x8 downsample used for the Y-plane
// difference hash and, subsampled by 2 vertically, for Cb/Cr.
const dHashSide = 8

// computeDHash resizes img to an 8x8 grid and builds the two-word
// difference hash laid out in the Hash.DHash field doc. Y, Cb and Cr each get
// their own slot; an earlier draft of this computation aliased all
// three writes onto the Y word, which silently discarded the chroma
// bits; keep them distinct.
func computeDHash(img image.Image) [2]uint64 {
	small := resize.Resize(dHashSide, dHashSide, img, resize.Lanczos3)

	var y [dHashSide][dHashSide]uint8
	var cb [dHashSide][dHashSide]uint8
	var cr [dHashSide][dHashSide]uint8
	for row := 0; row < dHashSide; row++ {
		for col := 0; col < dHashSide; col++ {
			yy, cbcb, crcr := toYCbCr(small.At(col, row))
			y[row][col] = yy
			cb[row][col] = cbcb
			cr[row][col] = crcr
		}
	}

	var word0, word1 uint64
	for row := 0; row < dHashSide; row++ {
		for col := 0; col < dHashSide; col++ {
			bit := uint(row*dHashSide + col)
			if diffBit(y[row], col) {
				word0 |= 1 << bit
			}
		}
	}

	// Cb/Cr: average vertically adjacent pairs of rows, even rows only,
	// giving a 8x4 grid (32 bits) per channel.
	pos := uint(0)
	for row := 0; row < dHashSide; row += 2 {
		var cbAvg, crAvg [dHashSide]uint8
		for col := 0; col < dHashSide; col++ {
			cbAvg[col] = uint8((uint16(cb[row][col]) + uint16(cb[row+1][col])) / 2)
			crAvg[col] = uint8((uint16(cr[row][col]) + uint16(cr[row+1][col])) / 2)
		}
		for col := 0; col < dHashSide; col++ {
			if diffBit(cbAvg, col) {
				word1 |= 1 << pos
			}
			if diffBit(crAvg, col) {
				word1 |= 1 << (pos + 32)
			}
			pos++
		}
	}

	return [2]uint64{word0, word1}
}

// diffBit reports the difference-hash bit for column col of row: for
// col 0 it's the row's own top bit (there's no left neighbour), else
// it's whether the pixel exceeds its left neighbour.
func diffBit(row [dHashSide]uint8, col int) bool {
	if col == 0 {
		return row[0]&0x80 != 0
	}
	return row[col] > row[col-1]
}

func toYCbCr(c color.Color) (y, cb, cr uint8) {
	if ycc, ok := c.(color.YCbCr); ok {
		return ycc.Y, ycc.Cb, ycc.Cr
	}
	r, g, b, _ := c.RGBA()
	return color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

const (
	yBins  = 32
	cbBins = 16
	crBins = 16
	yShift = 3 // 256/32
	cShift = 4 // 256/16
)

// computeHistogram builds the 64-bit median-quantized YCbCr histogram
// bit vector (32 Y bins, then 16 Cb, then 16 Cr) and reports the
// diagnostic per-channel maximum bin count.
func computeHistogram(img image.Image) (uint64, [Channels]float64) {
	bounds := img.Bounds()
	var yCounts [yBins]int
	var cbCounts [cbBins]int
	var crCounts [crBins]int

	for row := bounds.Min.Y; row < bounds.Max.Y; row++ {
		for col := bounds.Min.X; col < bounds.Max.X; col++ {
			y, cb, cr := toYCbCr(img.At(col, row))
			yCounts[y>>yShift]++
			cbCounts[cb>>cShift]++
			crCounts[cr>>cShift]++
		}
	}

	var histogram uint64
	yMedian := medianCount(yCounts[:])
	for i, count := range yCounts {
		if float64(count) > yMedian {
			histogram |= 1 << uint(i)
		}
	}
	cbMedian := medianCount(cbCounts[:])
	for i, count := range cbCounts {
		if float64(count) > cbMedian {
			histogram |= 1 << uint(yBins+i)
		}
	}
	crMedian := medianCount(crCounts[:])
	for i, count := range crCounts {
		if float64(count) > crMedian {
			histogram |= 1 << uint(yBins+cbBins+i)
		}
	}

	histoMax := [Channels]float64{
		float64(maxCount(yCounts[:])),
		float64(maxCount(cbCounts[:])),
		float64(maxCount(crCounts[:])),
	}
	return histogram, histoMax
}

func medianCount(counts []int) float64 {
	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func maxCount(counts []int) int {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}

// Encode writes h in the wire format shared with the persistent video
// store's candidate BLOB column.
func (h Hash) Encode(w *codec.Writer) {
	w.WriteUint32(uint32(h.Matrix.Width))
	w.WriteUint32(uint32(h.Matrix.Height))
	w.WriteLen(len(h.Matrix.Coefs))
	for _, c := range h.Matrix.Coefs {
		for _, v := range c {
			w.WriteFloat64(v)
		}
	}
	for _, t := range h.Thresholds {
		w.WriteFloat64(t)
	}
	w.WriteFloat64(h.Ratio)
	w.WriteUint64(h.DHash[0])
	w.WriteUint64(h.DHash[1])
	w.WriteUint64(h.Histogram)
	for _, m := range h.HistoMax {
		w.WriteFloat64(m)
	}
}

// Decode reads a Hash written by Encode.
func Decode(r *codec.Reader) Hash {
	var h Hash
	h.Matrix.Width = uint(r.ReadUint32())
	h.Matrix.Height = uint(r.ReadUint32())
	n := r.ReadLen()
	h.Matrix.Coefs = make([]haar.Coef, n)
	for i := range h.Matrix.Coefs {
		for c := 0; c < Channels; c++ {
			h.Matrix.Coefs[i][c] = r.ReadFloat64()
		}
	}
	for i := range h.Thresholds {
		h.Thresholds[i] = r.ReadFloat64()
	}
	h.Ratio = r.ReadFloat64()
	h.DHash[0] = r.ReadUint64()
	h.DHash[1] = r.ReadUint64()
	h.Histogram = r.ReadUint64()
	for i := range h.HistoMax {
		h.HistoMax[i] = r.ReadFloat64()
	}
	return h
}
