// Package videoquery implements the sequence-run state machine: it
// turns a stream of frame-level fingerprint matches against the
// persistent video store into whole-video matches, requiring a
// contiguous run of at least MinRun similar screenshots before a match
// is emitted.
package videoquery

import (
	"math"
	"sort"
	"strconv"

	"github.com/kestrelav/simdup/fingerprint"
	"github.com/kestrelav/simdup/imagestore"
	"github.com/kestrelav/simdup/video"
	"github.com/kestrelav/simdup/videostore"
)

// DefaultMinRun is the minimum consecutive similar screenshots that
// constitute a video-level match.
const DefaultMinRun = 6

// Match is one whole-video match emitted by Engine.Query.
type Match struct {
	VideoID   string
	Score     float64
	RunLength int
}

// Matches is kept in ascending (best-first) score order.
type Matches []Match

func (m Matches) Len() int           { return len(m) }
func (m Matches) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m Matches) Less(i, j int) bool { return m[i].Score < m[j].Score }

// Engine runs the run-length state machine against a persistent video
// store.
type Engine struct {
	store       *videostore.Store
	sensitivity float64
	minRun      int
	interval    float64
}

// New returns an Engine reading from store. sensitivity gates
// frame-level matches (same semantics as imagestore.Store); minRun
// and interval (seconds between screenshots) are usually the store's
// own Parameters.MinRunLength / IntervalSeconds.
func New(store *videostore.Store, sensitivity float64, minRun int, interval float64) *Engine {
	if minRun <= 0 {
		minRun = DefaultMinRun
	}
	return &Engine{store: store, sensitivity: sensitivity, minRun: minRun, interval: interval}
}

// frameMatch is one screenshot the inverted index says is similar to
// the screenshot being queried.
type frameMatch struct {
	videoID      string
	screenshotID int
}

// Query scans candidate's screenshots in order, tracking a run per
// opponent video, and returns whole-video matches for every opponent
// that sustained a run of at least Engine.minRun similar screenshots.
func (e *Engine) Query(candidate video.Candidate) Matches {
	sequences := make(map[string][]int)
	var matches Matches

	for _, shot := range candidate.Screenshots {
		frame := e.searchMatches(shot.Hash)

		prev := make(map[string]bool, len(sequences))
		for id := range sequences {
			prev[id] = true
		}
		cur := make(map[string]bool, len(frame))
		for _, m := range frame {
			cur[m.videoID] = true
		}

		for _, m := range frame {
			seq := sequences[m.videoID]
			if len(seq) > 0 && seq[len(seq)-1] == m.screenshotID-1 {
				sequences[m.videoID] = append(seq, m.screenshotID)
			} else {
				sequences[m.videoID] = []int{m.screenshotID}
			}
		}

		for id := range prev {
			if cur[id] {
				continue
			}
			if match, ok := e.emit(id, sequences[id], candidate); ok {
				matches = append(matches, match)
			}
			delete(sequences, id)
		}
	}

	for id, seq := range sequences {
		if match, ok := e.emit(id, seq, candidate); ok {
			matches = append(matches, match)
		}
	}

	sort.Stable(matches)
	return matches
}

// emit scores a finished run against the opponent video, resolved
// through the store's (cached) candidate lookup. A DB read failure here
// is treated as "this opponent is skipped for this run", per the
// error handling design.
func (e *Engine) emit(opponentID string, run []int, query video.Candidate) (Match, bool) {
	if len(run) < e.minRun {
		return Match{}, false
	}
	opponent, err := e.store.ReturnCandidate(opponentID)
	if err != nil {
		return Match{}, false
	}

	runLength := len(run)
	deltaW := float64(query.Width - opponent.Width)
	score := -60 - 100*(float64(runLength)*e.interval)/opponent.Runtime + deltaW*deltaW

	return Match{VideoID: opponentID, Score: score, RunLength: runLength}, true
}

// searchMatches runs a frame-level query against the video store's
// flattened inverted index: same bucket addressing and scoring as
// imagestore.Store.Query, but slots are identified by
// (filename, screenshot_id) instead of a fixed candidate array, since
// the index lives across separate DB rows rather than in memory.
func (e *Engine) searchMatches(hash fingerprint.Hash) []frameMatch {
	type accum struct {
		entry videostore.IndexEntry
		score float64
	}
	scores := make(map[string]*accum)

	width := int(fingerprint.ImageScale)
	total := width * width
	for coefIdx := 1; coefIdx < total; coefIdx++ {
		coef := hash.Matrix.Coefs[coefIdx]
		bin := imagestore.CoefBin(coefIdx)

		for c := 0; c < fingerprint.Channels; c++ {
			v := coef[c]
			if math.Abs(v) < hash.Thresholds[c] {
				continue
			}
			sign := 0
			if v < 0 {
				sign = 1
			}
			loc := imagestore.BucketAddr(sign, coefIdx, c)

			entries, err := e.store.ReturnIndices(loc)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				key := entry.Filename + "#" + strconv.Itoa(entry.ScreenshotID)
				a, ok := scores[key]
				if !ok {
					a = &accum{entry: entry, score: imagestore.InitialScore}
					scores[key] = a
				}
				a.score -= imagestore.WeightSum(bin)
			}
		}
	}

	var out []frameMatch
	for _, a := range scores {
		if a.score >= e.sensitivity {
			continue
		}
		out = append(out, frameMatch{videoID: a.entry.VideoID, screenshotID: a.entry.ScreenshotID})
	}
	return out
}
