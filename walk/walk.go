// Package walk is the file-traversal external collaborator: it yields
// absolute paths under a root directory, filtered by extension.
package walk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kestrelav/simdup/errs"
)

// ImageExtensions are the still-image container formats the engine
// decodes.
var ImageExtensions = extensionSet("png", "jpg", "jpeg", "bmp", "gif", "webp", "tif", "tiff")

// VideoExtensions are the video container formats the engine samples.
var VideoExtensions = extensionSet("mkv", "mp4", "avi", "mov", "webm")

func extensionSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set["."+e] = true
	}
	return set
}

// Find returns every absolute path under root whose extension (case
// insensitive) is in allowed. If recursive is false, only root's
// immediate children are considered. Results are sorted for
// deterministic ordering.
func Find(root string, recursive bool, allowed map[string]bool) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.New(errs.BadArgument, "walk.Find", err)
	}

	var out []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Per-entry stat/readdir errors are skipped, not fatal for
			// the traversal.
			return nil
		}
		if d.IsDir() {
			if !recursive && path != abs {
				return filepath.SkipDir
			}
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	}

	if err := filepath.WalkDir(abs, walkFn); err != nil {
		return nil, errs.New(errs.NotFound, "walk.Find", err)
	}
	sort.Strings(out)
	return out, nil
}

// Images finds image files under root.
func Images(root string, recursive bool) ([]string, error) {
	return Find(root, recursive, ImageExtensions)
}

// Videos finds video files under root.
func Videos(root string, recursive bool) ([]string, error) {
	return Find(root, recursive, VideoExtensions)
}
