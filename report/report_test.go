package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kestrelav/simdup/video"
	"github.com/kestrelav/simdup/videoquery"
)

func TestWriteCreatesOnePagePerCandidate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "similar_videos")
	candidates := []video.Candidate{{ID: "v1"}, {ID: "v2"}}
	matches := map[string][]videoquery.Match{
		"v1": {{VideoID: "v9", Score: -12.5, RunLength: 8}},
	}

	if err := Write(dir, candidates, matches); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, id := range []string{"v1", "v2"} {
		path := filepath.Join(dir, id+".html")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing page for %s: %v", id, err)
		}
		if !strings.Contains(string(data), id) {
			t.Errorf("page for %s does not mention its own id", id)
		}
	}

	v1, _ := os.ReadFile(filepath.Join(dir, "v1.html"))
	if !strings.Contains(string(v1), "v9") {
		t.Errorf("v1 page missing match video id v9")
	}

	v2, _ := os.ReadFile(filepath.Join(dir, "v2.html"))
	if !strings.Contains(string(v2), "No matches") {
		t.Errorf("v2 page should report no matches")
	}
}

// Real candidate IDs are full filesystem paths (engine.buildCandidate
// sets Candidate.ID to the scanned path), not bare tokens. Write must
// derive a flat report filename from the base name rather than joining
// the path raw, which would otherwise try to create the report inside
// a nonexistent directory tree mirroring the video's own path.
func TestWriteHandlesPathLikeCandidateID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "similar_videos")
	id := filepath.Join("home", "user", "videos", "foo.mp4")
	candidates := []video.Candidate{{ID: id}}

	if err := Write(dir, candidates, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := filepath.Join(dir, "foo.mp4.html")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("missing flat report page for path-like id %q: %v", id, err)
	}
	if !strings.Contains(string(data), id) {
		t.Errorf("page does not mention full candidate id %q", id)
	}
}
