// Package extractor is the video frame-extraction external
// collaborator: it shells out to ffmpeg and ffprobe to sample frames
// and read container metadata, the same way a number of the other
// repos in this pack drive an external transcoder rather than linking
// one in.
package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kestrelav/simdup/errs"
)

// Metadata is parsed from ffprobe's diagnostic output.
type Metadata struct {
	Duration  float64
	Width     int
	Height    int
	Framerate float64
}

// Extractor samples frames and reads container metadata from a video
// file. The engine depends on this interface, not *Command directly,
// so ingest tests can substitute a fake that needs no ffmpeg binary.
type Extractor interface {
	ExtractFrame(ctx context.Context, videoPath string, seekSeconds float64, outPath string) error
	Probe(ctx context.Context, videoPath string) (Metadata, error)
}

// Command is the default Extractor, driving ffmpeg/ffprobe binaries
// located on PATH, or at the configured paths.
type Command struct {
	FFmpegPath  string
	FFprobePath string
}

// New returns a Command. Empty paths default to "ffmpeg"/"ffprobe"
// resolved via PATH at call time.
func New(ffmpegPath, ffprobePath string) *Command {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Command{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Probe reads duration, width, height and framerate for path.
func (e *Command) Probe(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate:format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, errs.New(errs.ExtractorFailed, "extractor.Probe", err)
	}
	return parseProbeOutput(string(out)), nil
}

func parseProbeOutput(out string) Metadata {
	var m Metadata
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "width":
			m.Width, _ = strconv.Atoi(value)
		case "height":
			m.Height, _ = strconv.Atoi(value)
		case "duration":
			m.Duration, _ = strconv.ParseFloat(value, 64)
		case "r_frame_rate":
			m.Framerate = parseFrameRate(value)
		}
	}
	return m
}

// parseFrameRate turns ffprobe's "num/den" framerate into a float,
// falling back to 0 for malformed or degenerate input.
func parseFrameRate(raw string) float64 {
	num, den, ok := strings.Cut(raw, "/")
	n, errN := strconv.ParseFloat(num, 64)
	if !ok {
		if errN != nil {
			return 0
		}
		return n
	}
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}

// FramePath returns the predictable sibling JPEG path a caller should
// pass as outPath for the given screenshot id.
func FramePath(videoPath string, screenshotID int) string {
	ext := filepath.Ext(videoPath)
	base := strings.TrimSuffix(videoPath, ext)
	return fmt.Sprintf("%s_%03d.jpeg", base, screenshotID)
}

// ExtractFrame writes one JPEG frame sampled at seekSeconds from
// videoPath into outPath.
func (e *Command) ExtractFrame(ctx context.Context, videoPath string, seekSeconds float64, outPath string) error {
	cmd := exec.CommandContext(ctx, e.FFmpegPath,
		"-ss", strconv.FormatFloat(seekSeconds, 'f', 3, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-y",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return errs.New(errs.ExtractorFailed, "extractor.ExtractFrame", fmt.Errorf("%w: %s", err, output))
	}
	return nil
}
