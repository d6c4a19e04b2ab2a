// Package imagestore implements the inverted coefficient index described
// in the perceptual-similarity engine: images are added by their
// fingerprint.Hash, bucketed by the sign and position of their large
// Haar coefficients, and similarity queries rank candidates by how many
// buckets they share with the query, weighted by how coarse that
// coefficient is.
//
// The technique, bucketing by coefficient *location* rather than value,
// is the core idea of "Fast Multiresolution Image Querying"
// (Jacobs, Finkelstein, Salesin).
package imagestore

import (
	"math"
	"sort"
	"sync"

	"github.com/kestrelav/simdup/bitutil"
	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/fingerprint"
)

// weights is indexed [channel][bin]; weightSums is its column sum,
// i.e. weightSums[bin] == weights[0][bin]+weights[1][bin]+weights[2][bin].
// Both come from the scoring function in "Fast Multiresolution Image
// Querying" and must match exactly. They were fit empirically and
// aren't derivable from anything else in this package.
var (
	weights = [fingerprint.Channels][6]float64{
		{5.00, 0.83, 1.01, 0.52, 0.47, 0.30},
		{19.21, 1.26, 0.44, 0.53, 0.28, 0.14},
		{34.37, 0.36, 0.45, 0.14, 0.18, 0.27},
	}
	weightSums = [6]float64{58.58, 2.45, 1.9, 1.19, 0.93, 0.71}
)

// imageScale2 exists purely to spell out how the flat index length is
// derived; see IndexLength.
const imageScale2 = int(fingerprint.ImageScale) * int(fingerprint.ImageScale)

// IndexLength is the number of buckets in the inverted index:
// 2 (sign) * IMAGE_SCALE^2 * CHANNELS. An older draft used 98400 as a
// pre-sized reservation; the true value is 98304 and that's what's used
// here.
const IndexLength = 2 * imageScale2 * fingerprint.Channels

// Store is the inverted coefficient index. Its methods are concurrency
// safe for one process; the design does not support cross-process
// mutation of a single store file.
type Store struct {
	mu sync.RWMutex

	candidates []candidate
	ids        map[string]int
	indices    [][]uint32

	sensitivity float64
	modified    bool
}

// New returns an empty Store. A match is only returned from Query if its
// score is strictly less than sensitivity; lower sensitivity means a
// stricter (fewer-match) store.
func New(sensitivity float64) *Store {
	return &Store{
		ids:         make(map[string]int),
		indices:     make([][]uint32, IndexLength),
		sensitivity: sensitivity,
	}
}

func bucketAddr(sign, coefIdx, channel int) int {
	return sign*imageScale2*fingerprint.Channels + coefIdx*fingerprint.Channels + channel
}

// BucketAddr computes the same flat bucket address Add/Query use
// internally. The video store's flattened, DB-backed index uses the
// identical addressing scheme (same rule as the image Store), so it
// calls this rather than re-deriving it.
func BucketAddr(sign, coefIdx, channel int) int {
	return bucketAddr(sign, coefIdx, channel)
}

// CoefBin maps a coefficient position to its scoring bin (0..5), the
// same computation Query uses per-coefficient. Exported so the video
// query engine's frame-level search scores its DB-backed buckets with
// the identical weighting.
func CoefBin(coefIdx int) int {
	width := int(fingerprint.ImageScale)
	row, col := coefIdx/width, coefIdx%width
	bin := row
	if col > bin {
		bin = col
	}
	if bin > 5 {
		bin = 5
	}
	return bin
}

// InitialScore is the score a slot is given the first time any of its
// buckets is touched during a query: Σ_c WEIGHTS[c][0].
const InitialScore = 58.58

// WeightSum returns WEIGHTSUMS[bin], the amount subtracted from a
// slot's score for every additional bucket touch at that bin.
func WeightSum(bin int) float64 {
	return weightSums[bin]
}

// Add indexes hash under id. A no-op if id is already present.
func (s *Store) Add(id string, hash fingerprint.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; exists {
		return
	}

	idx := len(s.candidates)
	s.candidates = append(s.candidates, candidate{
		id:        id,
		scaleCoef: hash.Matrix.Coefs[0],
		ratio:     hash.Ratio,
		dhash:     hash.DHash,
		histogram: hash.Histogram,
		histoMax:  hash.HistoMax,
	})
	s.ids[id] = idx

	for coefIdx := 1; coefIdx < imageScale2; coefIdx++ {
		coef := hash.Matrix.Coefs[coefIdx]
		for c := 0; c < fingerprint.Channels; c++ {
			v := coef[c]
			if math.Abs(v) < hash.Thresholds[c] {
				continue
			}
			sign := 0
			if v < 0 {
				sign = 1
			}
			addr := bucketAddr(sign, coefIdx, c)
			s.indices[addr] = append(s.indices[addr], uint32(idx))
		}
	}

	s.modified = true
}

// Delete tombstones id's slot and removes it from every bucket. It
// reports whether id was present. Delete never shrinks candidates;
// the slot stays allocated so every other bucket's indices stay valid.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.ids[id]
	if !ok {
		return false
	}
	delete(s.ids, id)
	s.candidates[idx].tombstone = true
	s.candidates[idx].id = ""

	target := uint32(idx)
	for i, bucket := range s.indices {
		if len(bucket) == 0 {
			continue
		}
		s.indices[i] = removeValue(bucket, target)
	}

	s.modified = true
	return true
}

func removeValue(bucket []uint32, target uint32) []uint32 {
	write := 0
	for _, v := range bucket {
		if v == target {
			continue
		}
		bucket[write] = v
		write++
	}
	return bucket[:write]
}

// Exchange rekeys old's slot to new, preserving its position in the
// index. It returns false if old is absent or new is already present;
// neither case mutates the store.
func (s *Store) Exchange(old, new string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.ids[old]
	if !ok {
		return false
	}
	if _, exists := s.ids[new]; exists {
		return false
	}

	delete(s.ids, old)
	s.ids[new] = idx
	s.candidates[idx].id = new
	s.modified = true
	return true
}

// Query returns every candidate scoring strictly below the store's
// sensitivity, sorted ascending (best match first). Sort is stable so
// equal-score candidates keep insertion order.
func (s *Store) Query(hash fingerprint.Hash) Matches {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.candidates) == 0 {
		return nil
	}

	scores := make(map[int]float64, fingerprint.TopCoefs*fingerprint.Channels)

	for coefIdx := 1; coefIdx < imageScale2; coefIdx++ {
		coef := hash.Matrix.Coefs[coefIdx]
		bin := CoefBin(coefIdx)

		for c := 0; c < fingerprint.Channels; c++ {
			v := coef[c]
			if math.Abs(v) < hash.Thresholds[c] {
				continue
			}
			sign := 0
			if v < 0 {
				sign = 1
			}
			bucket := s.indices[bucketAddr(sign, coefIdx, c)]
			for _, slot := range bucket {
				j := int(slot)
				if _, touched := scores[j]; !touched {
					scores[j] = InitialScore
				}
				scores[j] -= weightSums[bin]
			}
		}
	}

	matches := make(Matches, 0, len(scores))
	for idx := range s.candidates {
		score, touched := scores[idx]
		if !touched || score >= s.sensitivity {
			continue
		}
		cand := s.candidates[idx]
		if cand.tombstone {
			continue
		}
		matches = append(matches, Match{
			ID:                cand.id,
			Score:             score,
			RatioDiff:         math.Abs(math.Log10(cand.ratio)) - math.Log10(hash.Ratio),
			DHashDistance:     bitutil.Hamming128(cand.dhash, hash.DHash),
			HistogramDistance: bitutil.Hamming(cand.histogram, hash.Histogram),
		})
	}
	sort.Stable(matches)
	return matches
}

// Size is the number of slots ever allocated, tombstoned or not. It
// does not shrink on Delete.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates)
}

// Ids returns the currently live ids, sorted ascending.
func (s *Store) Ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.ids))
	for id := range s.ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// Modified reports whether the store has changed since it was
// created/loaded.
func (s *Store) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Sensitivity returns the current match threshold.
func (s *Store) Sensitivity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensitivity
}

// SetSensitivity changes the match threshold for subsequent queries.
func (s *Store) SetSensitivity(sensitivity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitivity = sensitivity
}

// Encode writes the store in field order: candidates, ids, sensitivity,
// indices, modified. This is the binary store-dump format.
func (s *Store) Encode(w *codec.Writer) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w.WriteLen(len(s.candidates))
	for _, c := range s.candidates {
		w.WriteString(c.id)
		w.WriteBool(c.tombstone)
		for _, v := range c.scaleCoef {
			w.WriteFloat64(v)
		}
		w.WriteFloat64(c.ratio)
		w.WriteUint64(c.dhash[0])
		w.WriteUint64(c.dhash[1])
		w.WriteUint64(c.histogram)
		for _, v := range c.histoMax {
			w.WriteFloat64(v)
		}
	}

	keys := make([]string, 0, len(s.ids))
	for id := range s.ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	w.WriteLen(len(keys))
	for _, id := range keys {
		w.WriteString(id)
		w.WriteUint64(uint64(s.ids[id]))
	}

	w.WriteFloat64(s.sensitivity)

	w.WriteLen(len(s.indices))
	for _, bucket := range s.indices {
		w.WriteLen(len(bucket))
		for _, slot := range bucket {
			w.WriteUint32(slot)
		}
	}

	w.WriteBool(s.modified)
}

// Decode reconstructs a Store written by Encode.
func Decode(r *codec.Reader) *Store {
	s := &Store{ids: make(map[string]int)}

	n := r.ReadLen()
	s.candidates = make([]candidate, n)
	for i := range s.candidates {
		s.candidates[i].id = r.ReadString()
		s.candidates[i].tombstone = r.ReadBool()
		for c := range s.candidates[i].scaleCoef {
			s.candidates[i].scaleCoef[c] = r.ReadFloat64()
		}
		s.candidates[i].ratio = r.ReadFloat64()
		s.candidates[i].dhash[0] = r.ReadUint64()
		s.candidates[i].dhash[1] = r.ReadUint64()
		s.candidates[i].histogram = r.ReadUint64()
		for c := range s.candidates[i].histoMax {
			s.candidates[i].histoMax[c] = r.ReadFloat64()
		}
	}

	idCount := r.ReadLen()
	for i := 0; i < idCount; i++ {
		id := r.ReadString()
		idx := r.ReadUint64()
		s.ids[id] = int(idx)
	}

	s.sensitivity = r.ReadFloat64()

	indexCount := r.ReadLen()
	s.indices = make([][]uint32, indexCount)
	for i := range s.indices {
		bucketLen := r.ReadLen()
		if bucketLen == 0 {
			continue
		}
		bucket := make([]uint32, bucketLen)
		for j := range bucket {
			bucket[j] = r.ReadUint32()
		}
		s.indices[i] = bucket
	}

	s.modified = r.ReadBool()
	return s
}
