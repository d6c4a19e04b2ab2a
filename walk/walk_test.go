package walk

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImagesNonRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "b.txt"))
	touch(t, filepath.Join(root, "sub", "c.png"))

	got, err := Images(root, false)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d paths, want 1: %v", len(got), got)
	}
}

func TestImagesRecursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "sub", "c.PNG"))
	touch(t, filepath.Join(root, "sub", "deep", "d.webp"))

	got, err := Images(root, true)
	if err != nil {
		t.Fatalf("Images: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d paths, want 3: %v", len(got), got)
	}
}

func TestVideosFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "movie.mp4"))
	touch(t, filepath.Join(root, "poster.jpg"))

	got, err := Videos(root, true)
	if err != nil {
		t.Fatalf("Videos: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d paths, want 1: %v", len(got), got)
	}
}
