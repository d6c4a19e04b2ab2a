// Package video holds the per-video candidate model shared by the
// persistent video store and the video query engine: an ordered run of
// screenshot fingerprints plus the metadata needed to score a match.
package video

import (
	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/fingerprint"
)

// Screenshot is one sampled frame of a video, already fingerprinted.
type Screenshot struct {
	VideoID      string
	ScreenshotID int // 1-based, contiguous within its video
	Timecode     float64
	Hash         fingerprint.Hash
}

// Encode writes s in the field order VideoID, ScreenshotID, Timecode,
// Hash.
func (s Screenshot) Encode(w *codec.Writer) {
	w.WriteString(s.VideoID)
	w.WriteInt32(int32(s.ScreenshotID))
	w.WriteFloat64(s.Timecode)
	s.Hash.Encode(w)
}

// DecodeScreenshot reads a Screenshot written by Encode.
func DecodeScreenshot(r *codec.Reader) Screenshot {
	var s Screenshot
	s.VideoID = r.ReadString()
	s.ScreenshotID = int(r.ReadInt32())
	s.Timecode = r.ReadFloat64()
	s.Hash = fingerprint.Decode(r)
	return s
}

// Candidate is one video held by the persistent video store: its
// sampled screenshots in order, plus enough metadata to score a
// sequence-run match against it.
//
// Invariant: Screenshots is sorted by ScreenshotID and contiguous from
// 1; Runtime approximates len(Screenshots) * the sampling interval.
type Candidate struct {
	ID         string
	Index      int
	Screenshots []Screenshot
	Width       int
	Height      int
	Runtime     float64 // seconds
	Framerate   float64
}

// Encode writes c in field order: ID, Index, Width, Height, Runtime,
// Framerate, then the Screenshots vector. This is the layout persisted
// in the video store's candidate BLOB column.
func (c Candidate) Encode(w *codec.Writer) {
	w.WriteString(c.ID)
	w.WriteInt32(int32(c.Index))
	w.WriteInt32(int32(c.Width))
	w.WriteInt32(int32(c.Height))
	w.WriteFloat64(c.Runtime)
	w.WriteFloat64(c.Framerate)
	w.WriteLen(len(c.Screenshots))
	for _, s := range c.Screenshots {
		s.Encode(w)
	}
}

// Decode reads a Candidate written by Encode.
func Decode(r *codec.Reader) Candidate {
	var c Candidate
	c.ID = r.ReadString()
	c.Index = int(r.ReadInt32())
	c.Width = int(r.ReadInt32())
	c.Height = int(r.ReadInt32())
	c.Runtime = r.ReadFloat64()
	c.Framerate = r.ReadFloat64()
	n := r.ReadLen()
	c.Screenshots = make([]Screenshot, n)
	for i := range c.Screenshots {
		c.Screenshots[i] = DecodeScreenshot(r)
	}
	return c
}

// TruncateAt drops every screenshot from screenshotID onward and
// corrects Runtime to match, for the case where frame extraction fails
// partway through a video.
func (c *Candidate) TruncateAt(screenshotID int, interval float64) {
	kept := c.Screenshots[:0:0]
	for _, s := range c.Screenshots {
		if s.ScreenshotID >= screenshotID {
			break
		}
		kept = append(kept, s)
	}
	c.Screenshots = kept
	c.Runtime = float64(len(kept)) * interval
}
