package imagestore

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/kestrelav/simdup/fingerprint"
)

// gridImage draws a checkerboard of cell x cell blocks alternating
// between c1 and c2, giving the Haar transform real high-frequency
// content to work with; a uniform-colour image has no AC energy at
// all and every threshold would collapse to zero.
func gridImage(w, h, cell int, c1, c2 color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((x/cell)+(y/cell))%2 == 0 {
				img.Set(x, y, c1)
			} else {
				img.Set(x, y, c2)
			}
		}
	}
	return img
}

func imgA() image.Image {
	return gridImage(128, 128, 8, color.RGBA{200, 50, 50, 255}, color.RGBA{50, 50, 200, 255})
}

// imgC is near-duplicate of imgA: same grid, slightly shifted colours.
func imgC() image.Image {
	return gridImage(128, 128, 8, color.RGBA{195, 55, 55, 255}, color.RGBA{55, 55, 195, 255})
}

// imgB is unrelated: different cell size and palette entirely.
func imgB() image.Image {
	return gridImage(128, 128, 4, color.RGBA{30, 180, 30, 255}, color.RGBA{180, 30, 180, 255})
}

// Property 2: self-match. Querying a store containing I with I's own
// hash must return I as the best match.
func TestSelfMatch(t *testing.T) {
	s := New(math.Inf(1))
	h := fingerprint.Create(imgA())
	s.Add("I", h)

	matches := s.Query(h)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].ID != "I" {
		t.Errorf("best match = %q, want %q", matches[0].ID, "I")
	}
	// No buckets missed: every bucket the query touches holds I, so its
	// score is InitialScore minus the weight sum of every touched bucket.
	want := InitialScore
	for coefIdx := 1; coefIdx < imageScale2; coefIdx++ {
		bin := CoefBin(coefIdx)
		for c := 0; c < fingerprint.Channels; c++ {
			if math.Abs(h.Matrix.Coefs[coefIdx][c]) >= h.Thresholds[c] {
				want -= WeightSum(bin)
			}
		}
	}
	if matches[0].Score != want {
		t.Errorf("self-match score = %v, want %v (no buckets missed)", matches[0].Score, want)
	}
}

// Property 3: tightening sensitivity never adds matches.
func TestSensitivityMonotonicity(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))

	hc := fingerprint.Create(imgC())

	s.SetSensitivity(math.Inf(1))
	loose := s.Query(hc)

	s.SetSensitivity(-1000)
	strict := s.Query(hc)

	looseIDs := make(map[string]bool, len(loose))
	for _, m := range loose {
		looseIDs[m.ID] = true
	}
	for _, m := range strict {
		if !looseIDs[m.ID] {
			t.Errorf("strict query returned %q, which the loose query missed", m.ID)
		}
	}
	if len(strict) > len(loose) {
		t.Errorf("strict match count %d > loose match count %d", len(strict), len(loose))
	}
}

// Property 4: delete removes the id from every query and ids(), but
// size() never shrinks.
func TestDeleteRemoval(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))

	sizeBefore := s.Size()
	if !s.Delete("A") {
		t.Fatal("Delete(A) = false, want true")
	}
	if s.Size() != sizeBefore {
		t.Errorf("Size() = %d after delete, want unchanged %d", s.Size(), sizeBefore)
	}

	matches := s.Query(fingerprint.Create(imgC()))
	for _, m := range matches {
		if m.ID == "A" {
			t.Errorf("deleted id %q still returned by Query", m.ID)
		}
	}
	for _, id := range s.Ids() {
		if id == "A" {
			t.Errorf("deleted id %q still present in Ids()", id)
		}
	}
}

// Property 5: exchange semantics and slot-identity preservation.
func TestExchangeAtomicity(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))

	idsBefore := s.Ids()
	if s.Exchange("does_not_exist", "x") {
		t.Error("Exchange(missing, x) = true, want false")
	}
	if !equalStrings(s.Ids(), idsBefore) {
		t.Errorf("Ids() changed after failed exchange: %v vs %v", s.Ids(), idsBefore)
	}

	if s.Exchange("A", "B") {
		t.Error("Exchange(A, B) = true, want false (B already present)")
	}

	if !s.Exchange("A", "D") {
		t.Fatal("Exchange(A, D) = false, want true")
	}

	ids := s.Ids()
	if containsString(ids, "A") {
		t.Errorf("Ids() still contains A after exchange: %v", ids)
	}
	if !containsString(ids, "D") {
		t.Errorf("Ids() missing D after exchange: %v", ids)
	}

	idx, ok := s.ids["D"]
	if !ok {
		t.Fatal("D not registered in internal id map")
	}
	if s.candidates[idx].id != "D" {
		t.Errorf("candidate at D's slot has id %q, want D", s.candidates[idx].id)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// S1: C is similar to A but not B; querying C ranks A first.
func TestScenarioS1(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))

	matches := s.Query(fingerprint.Create(imgC()))
	if len(matches) == 0 {
		t.Fatal("expected a non-empty match list")
	}
	if matches[0].ID != "A" {
		t.Errorf("best match = %q, want A", matches[0].ID)
	}
}

// S2: after deleting A, querying C returns exactly B.
func TestScenarioS2(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))
	s.Delete("A")

	matches := s.Query(fingerprint.Create(imgC()))
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want exactly 1: %+v", len(matches), matches)
	}
	if matches[0].ID != "B" {
		t.Errorf("match id = %q, want B", matches[0].ID)
	}
}

// S3: ids() after inserting A,B,C and deleting A returns [B C] sorted.
func TestScenarioS3(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))
	s.Add("C", fingerprint.Create(imgC()))
	s.Delete("A")

	want := []string{"B", "C"}
	got := s.Ids()
	if !equalStrings(got, want) {
		t.Errorf("Ids() = %v, want %v", got, want)
	}
}

// S4: literal exchange scenario.
func TestScenarioS4(t *testing.T) {
	s := New(math.Inf(1))
	s.Add("A", fingerprint.Create(imgA()))
	s.Add("B", fingerprint.Create(imgB()))

	before := s.Ids()
	if s.Exchange("does_not_exist", "x") {
		t.Error("Exchange(does_not_exist, x) = true, want false")
	}
	if !equalStrings(s.Ids(), before) {
		t.Errorf("Ids() changed: %v vs %v", s.Ids(), before)
	}

	if s.Exchange("A", "B") {
		t.Error("Exchange(A, B) = true, want false")
	}

	if !s.Exchange("A", "D") {
		t.Fatal("Exchange(A, D) = false, want true")
	}
	ids := s.Ids()
	if containsString(ids, "A") || !containsString(ids, "D") {
		t.Errorf("Ids() = %v, want A absent and D present", ids)
	}
}
