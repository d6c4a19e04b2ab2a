// Package engine is the central coordinator: it wires the file
// traverser, decoder, extractor, fingerprint builder, image store,
// video store and video query engine together into the two run modes
// the CLI exposes, scanning a directory and querying a single file.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kestrelav/simdup/decode"
	"github.com/kestrelav/simdup/extractor"
	"github.com/kestrelav/simdup/fingerprint"
	"github.com/kestrelav/simdup/imagestore"
	"github.com/kestrelav/simdup/progress"
	"github.com/kestrelav/simdup/video"
	"github.com/kestrelav/simdup/videoquery"
	"github.com/kestrelav/simdup/videostore"
	"github.com/kestrelav/simdup/walk"
)

// Config holds every knob Engine needs, mirroring the configuration
// surfaced by the CLI layer.
type Config struct {
	Recursive       bool
	IntervalSeconds float64
	NumThreads      int
	MinRunLength    int
	Sensitivity     float64
}

// Engine is the central coordinator threaded with real collaborators.
// Its dependencies are interfaces so tests can substitute fakes
// without touching the filesystem or an external ffmpeg binary.
type Engine struct {
	cfg       Config
	logger    *logrus.Logger
	decoder   decode.Decoder
	extractor extractor.Extractor
	progress  progress.Reporter
}

// New returns an Engine. A nil logger, decoder or extractor is replaced
// with the real default implementation; a nil progress reporter is
// replaced with progress.NoOp.
func New(cfg Config, logger *logrus.Logger, dec decode.Decoder, ext extractor.Extractor, prog progress.Reporter) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if dec == nil {
		dec = decode.Default{}
	}
	if ext == nil {
		ext = extractor.New("", "")
	}
	if prog == nil {
		prog = progress.NoOp{}
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 10
	}
	return &Engine{cfg: cfg, logger: logger, decoder: dec, extractor: ext, progress: prog}
}

// DuplicatePair is one confirmed near-duplicate image match, ordered
// so Path is the file just indexed and MatchPath is the pre-existing
// candidate it scored against.
type DuplicatePair struct {
	Path      string
	MatchPath string
	Match     imagestore.Match
}

// ScanImages walks root, fingerprints every image found, and indexes
// it into store. Every match returned by Query before the file is
// added is reported as a DuplicatePair; decode failures are logged and
// the file skipped, per the error handling design.
func (e *Engine) ScanImages(root string, store *imagestore.Store) ([]DuplicatePair, error) {
	paths, err := walk.Images(root, e.cfg.Recursive)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	e.logger.WithFields(logrus.Fields{"run_id": runID, "count": humanize.Comma(int64(len(paths)))}).Info("scan started")

	var pairs []DuplicatePair
	for _, path := range paths {
		e.progress.Describe(path)
		img, err := e.decoder.Decode(path)
		if err != nil {
			e.logger.WithFields(logrus.Fields{"path": path, "err": err}).Warn("decode failed, skipping")
			e.progress.Add(1)
			continue
		}

		hash := fingerprint.Create(img)
		for _, m := range store.Query(hash) {
			pairs = append(pairs, DuplicatePair{Path: path, MatchPath: m.ID, Match: m})
		}
		store.Add(path, hash)
		e.progress.Add(1)
	}
	e.logger.WithFields(logrus.Fields{"run_id": runID, "pairs": len(pairs)}).Info("scan finished")
	return pairs, nil
}

// QueryImage fingerprints a single file and reports matches without
// inserting it into store.
func (e *Engine) QueryImage(path string, store *imagestore.Store) (imagestore.Matches, error) {
	img, err := e.decoder.Decode(path)
	if err != nil {
		return nil, err
	}
	return store.Query(fingerprint.Create(img)), nil
}

// ingestResult is one completed video, or the error that prevented its
// extraction, published by a worker onto the consumer channel.
type ingestResult struct {
	path      string
	candidate video.Candidate
	err       error
}

// IngestVideos walks root for video files and runs them through a
// bounded worker pool: each worker extracts screenshots and builds a
// video.Candidate, the single consumer goroutine (this one) owns the
// store and the query engine, draining results in arrival order,
// inserting each candidate and running the sequence-run query against
// it. ctx is polled between files and between screenshots so a
// cancellation drains outstanding workers without persisting a
// partial candidate.
func (e *Engine) IngestVideos(ctx context.Context, root string, store *videostore.Store, query *videoquery.Engine) (map[string][]videoquery.Match, error) {
	paths, err := walk.Videos(root, e.cfg.Recursive)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	e.logger.WithFields(logrus.Fields{"run_id": runID, "count": humanize.Comma(int64(len(paths)))}).Info("video ingest started")

	jobs := make(chan string)
	results := make(chan ingestResult)

	workers := e.cfg.NumThreads
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			e.ingestWorker(ctx, jobs, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	matches := make(map[string][]videoquery.Match)
	for res := range results {
		e.progress.Add(1)
		if res.err != nil {
			e.logger.WithFields(logrus.Fields{"path": res.path, "err": res.err}).Warn("video ingest failed, skipping")
			continue
		}
		if err := store.Add(res.path, res.candidate); err != nil {
			e.logger.WithFields(logrus.Fields{"path": res.path, "err": err}).Warn("video store add failed")
			continue
		}
		matches[res.candidate.ID] = query.Query(res.candidate)
	}

	e.logger.WithFields(logrus.Fields{"run_id": runID, "videos": len(paths)}).Info("video ingest finished")
	return matches, nil
}

// ingestWorker extracts screenshots from each path it's handed and
// sends back a completed candidate. Workers share no mutable state;
// only the consumer touches the video store.
func (e *Engine) ingestWorker(ctx context.Context, jobs <-chan string, results chan<- ingestResult) {
	for path := range jobs {
		if ctx.Err() != nil {
			results <- ingestResult{path: path, err: ctx.Err()}
			continue
		}
		candidate, err := e.buildCandidate(ctx, path)
		results <- ingestResult{path: path, candidate: candidate, err: err}
	}
}

// buildCandidate probes path for metadata, then samples screenshots
// at IntervalSeconds until the video's duration is covered. A frame
// extraction failure truncates the candidate at that screenshot and
// the error is swallowed, since a partial candidate is still useful
// (matching §5/§7's truncate-and-continue policy). An error is returned
// only when the probe fails, when ctx is cancelled (so no partial
// candidate reaches the store), or when no screenshot was extracted.
func (e *Engine) buildCandidate(ctx context.Context, path string) (video.Candidate, error) {
	meta, err := e.extractor.Probe(ctx, path)
	if err != nil {
		return video.Candidate{}, err
	}

	candidate := video.Candidate{
		ID:        path,
		Width:     meta.Width,
		Height:    meta.Height,
		Framerate: meta.Framerate,
	}

	screenshotID := 1
	for t := 0.0; t < meta.Duration; t += e.cfg.IntervalSeconds {
		if ctx.Err() != nil {
			break
		}

		framePath := extractor.FramePath(path, screenshotID)
		if err := e.extractor.ExtractFrame(ctx, path, t, framePath); err != nil {
			e.logger.WithFields(logrus.Fields{"path": path, "screenshot_id": screenshotID, "err": err}).Warn("frame extraction failed, truncating")
			break
		}

		img, err := e.decoder.Decode(framePath)
		if err != nil {
			e.logger.WithFields(logrus.Fields{"path": framePath, "err": err}).Warn("decode failed, truncating")
			break
		}

		candidate.Screenshots = append(candidate.Screenshots, video.Screenshot{
			VideoID:      path,
			ScreenshotID: screenshotID,
			Timecode:     t,
			Hash:         fingerprint.Create(img),
		})
		screenshotID++
	}
	if err := ctx.Err(); err != nil {
		return video.Candidate{}, err
	}
	candidate.Runtime = float64(len(candidate.Screenshots)) * e.cfg.IntervalSeconds

	if len(candidate.Screenshots) == 0 {
		return video.Candidate{}, fmt.Errorf("engine: no screenshots extracted from %s", filepath.Base(path))
	}
	return candidate, nil
}
