package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/engine"
	"github.com/kestrelav/simdup/imagestore"
	"github.com/kestrelav/simdup/organize"
	"github.com/kestrelav/simdup/progress"
	"github.com/kestrelav/simdup/report"
	"github.com/kestrelav/simdup/video"
	"github.com/kestrelav/simdup/videoquery"
	"github.com/kestrelav/simdup/videostore"
)

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "similar_videos.sqlite3"
	}
	return filepath.Join(home, "similar_videos.sqlite3")
}

func main() {
	app := &cli.App{
		Name:  "simdup",
		Usage: "perceptual image and video near-duplicate detector",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "sensitivity-offset", Value: 0, Usage: "0..100, added to the base -60 score; lower final sensitivity is stricter"},
			&cli.BoolFlag{Name: "recursive", Value: true, Usage: "traverse subdirectories"},
			&cli.Float64Flag{Name: "interval", Value: 10, Usage: "seconds between sampled video screenshots"},
			&cli.IntFlag{Name: "min-run", Value: videoquery.DefaultMinRun, Usage: "contiguous similar frames required for a video match"},
			&cli.IntFlag{Name: "cache-capacity", Value: 100, Usage: "videos held in the persistent store's RAM cache"},
			&cli.IntFlag{Name: "threads", Value: 4, Usage: "video ingest worker pool size"},
			&cli.StringFlag{Name: "db", Value: defaultDBPath(), Usage: "persistent video store sqlite file"},
			&cli.StringFlag{Name: "duplicates-dir", Value: "duplicates", Usage: "name of the duplicates directory created directly under the scanned directory"},
			&cli.StringFlag{Name: "reports-dir", Value: "similar_videos", Usage: "output directory for HTML video match reports"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "panic, fatal, error, warn, info, debug, trace"},
		},
		Commands: []*cli.Command{
			scanCommand,
			queryCommand,
			dumpCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func sensitivity(c *cli.Context) float64 {
	return -60 + c.Float64("sensitivity-offset")
}

func engineConfig(c *cli.Context) engine.Config {
	return engine.Config{
		Recursive:       c.Bool("recursive"),
		IntervalSeconds: c.Float64("interval"),
		NumThreads:      c.Int("threads"),
		MinRunLength:    c.Int("min-run"),
		Sensitivity:     sensitivity(c),
	}
}

var scanCommand = &cli.Command{
	Name:      "scan",
	Usage:     "walk a directory, index every image and video, and report duplicates",
	ArgsUsage: "<dir>",
	Action: func(c *cli.Context) error {
		dir := c.Args().First()
		if dir == "" {
			return cli.Exit("scan requires a directory argument", 1)
		}
		logger := newLogger(c)
		bar := progress.NewBar(0, "scanning")
		defer bar.Close()

		e := engine.New(engineConfig(c), logger, nil, nil, bar)

		imgStore := imagestore.New(sensitivity(c))
		pairs, err := e.ScanImages(dir, imgStore)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			logger.WithFields(logrus.Fields{"path": p.Path, "match": p.MatchPath, "score": p.Match.Score}).Info("duplicate image found")
			duplicatesDir := filepath.Join(dir, c.String("duplicates-dir"))
			if err := organize.Resolve(duplicatesDir, p.MatchPath, p.Path); err != nil {
				logger.WithFields(logrus.Fields{"err": err}).Warn("organize.Resolve failed")
			}
		}

		vStore, err := videostore.Open(c.String("db"), videostore.Parameters{
			Sensitivity:     sensitivity(c),
			StartDirectory:  dir,
			NumThreads:      c.Int("threads"),
			IntervalSeconds: c.Float64("interval"),
			MinRunLength:    c.Int("min-run"),
			CacheCapacity:   c.Int("cache-capacity"),
		})
		if err != nil {
			return err
		}
		defer vStore.Close()

		query := videoquery.New(vStore, sensitivity(c), c.Int("min-run"), c.Float64("interval"))
		matches, err := e.IngestVideos(context.Background(), dir, vStore, query)
		if err != nil {
			return err
		}

		return report.Write(c.String("reports-dir"), candidatesFromMatches(matches), matches)
	},
}

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "fingerprint a single file and report matches without inserting it",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return cli.Exit("query requires a file argument", 1)
		}
		logger := newLogger(c)
		e := engine.New(engineConfig(c), logger, nil, nil, nil)

		imgStore := imagestore.New(sensitivity(c))
		matches, err := e.QueryImage(path, imgStore)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Printf("%s\tscore=%.2f\n", m.ID, m.Score)
		}
		return nil
	},
}

var dumpCommand = &cli.Command{
	Name:      "dump",
	Usage:     "write the binary store-dump of a freshly built image Store",
	ArgsUsage: "<dir> <path>",
	Action: func(c *cli.Context) error {
		dir := c.Args().Get(0)
		out := c.Args().Get(1)
		if dir == "" || out == "" {
			return cli.Exit("dump requires a directory and an output path", 1)
		}
		logger := newLogger(c)
		e := engine.New(engineConfig(c), logger, nil, nil, nil)

		imgStore := imagestore.New(sensitivity(c))
		if _, err := e.ScanImages(dir, imgStore); err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer f.Close()

		w := codec.NewWriter(f)
		imgStore.Encode(w)
		if err := w.Err(); err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	},
}

// candidatesFromMatches rebuilds the minimal []video.Candidate slice
// report.Write expects (one entry per query video) from the ingest
// pipeline's match map; the report only ever reads each entry's ID.
func candidatesFromMatches(matches map[string][]videoquery.Match) []video.Candidate {
	candidates := make([]video.Candidate, 0, len(matches))
	for id := range matches {
		candidates = append(candidates, video.Candidate{ID: id})
	}
	return candidates
}
