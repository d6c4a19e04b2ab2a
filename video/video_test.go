package video

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/fingerprint"
)

func sampleHash() fingerprint.Hash {
	rect := image.Rect(0, 0, 16, 16)
	img := image.NewRGBA(rect)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 40, 255})
		}
	}
	return fingerprint.Create(img)
}

func TestScreenshotEncodeDecodeRoundTrip(t *testing.T) {
	s := Screenshot{VideoID: "v1", ScreenshotID: 3, Timecode: 30.0, Hash: sampleHash()}

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	s.Encode(w)
	if w.Err() != nil {
		t.Fatalf("encode: %v", w.Err())
	}

	r := codec.NewReader(&buf)
	got := DecodeScreenshot(r)
	if r.Err() != nil {
		t.Fatalf("decode: %v", r.Err())
	}
	if got.VideoID != s.VideoID || got.ScreenshotID != s.ScreenshotID || got.Timecode != s.Timecode {
		t.Errorf("round trip mismatch: %+v vs %+v", got, s)
	}
	if got.Hash.Ratio != s.Hash.Ratio || got.Hash.DHash != s.Hash.DHash {
		t.Errorf("hash not preserved across round trip")
	}
}

func TestCandidateEncodeDecodeRoundTrip(t *testing.T) {
	c := Candidate{
		ID:        "v1",
		Index:     0,
		Width:     1920,
		Height:    1080,
		Runtime:   120,
		Framerate: 29.97,
		Screenshots: []Screenshot{
			{VideoID: "v1", ScreenshotID: 1, Timecode: 10, Hash: sampleHash()},
			{VideoID: "v1", ScreenshotID: 2, Timecode: 20, Hash: sampleHash()},
		},
	}

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	c.Encode(w)
	if w.Err() != nil {
		t.Fatalf("encode: %v", w.Err())
	}

	r := codec.NewReader(&buf)
	got := Decode(r)
	if r.Err() != nil {
		t.Fatalf("decode: %v", r.Err())
	}
	if got.ID != c.ID || got.Width != c.Width || got.Height != c.Height || got.Runtime != c.Runtime {
		t.Errorf("round trip mismatch: %+v vs %+v", got, c)
	}
	if len(got.Screenshots) != len(c.Screenshots) {
		t.Fatalf("screenshot count = %d, want %d", len(got.Screenshots), len(c.Screenshots))
	}
	for i := range c.Screenshots {
		if got.Screenshots[i].ScreenshotID != c.Screenshots[i].ScreenshotID {
			t.Errorf("screenshot %d id mismatch", i)
		}
	}
}

func TestCandidateTruncateAt(t *testing.T) {
	c := Candidate{
		ID:      "v1",
		Runtime: 60,
		Screenshots: []Screenshot{
			{ScreenshotID: 1}, {ScreenshotID: 2}, {ScreenshotID: 3}, {ScreenshotID: 4},
		},
	}
	c.TruncateAt(3, 10)

	if len(c.Screenshots) != 2 {
		t.Fatalf("got %d screenshots, want 2", len(c.Screenshots))
	}
	if c.Screenshots[len(c.Screenshots)-1].ScreenshotID != 2 {
		t.Errorf("last kept screenshot id = %d, want 2", c.Screenshots[len(c.Screenshots)-1].ScreenshotID)
	}
	if c.Runtime != 20 {
		t.Errorf("Runtime = %v, want 20", c.Runtime)
	}
}
