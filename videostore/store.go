// Package videostore is the persistent, relational-backed counterpart
// to imagestore: it durably holds VideoCandidate blobs and a flattened
// inverted index over every screenshot of every stored video, fronted
// by a small FIFO cache for sequential ingest workloads.
//
// Storage is an embedded SQLite database opened through database/sql
// via modernc.org/sqlite, a CGO-free driver. The engine is meant to
// run inside a plain `go build`, no C toolchain required.
package videostore

import (
	"bytes"
	"database/sql"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kestrelav/simdup/codec"
	"github.com/kestrelav/simdup/errs"
	"github.com/kestrelav/simdup/fingerprint"
	"github.com/kestrelav/simdup/imagestore"
	"github.com/kestrelav/simdup/video"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	candidate_id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename     TEXT UNIQUE NOT NULL,
	video_id     TEXT NOT NULL,
	data         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_candidates_video_id ON candidates(video_id);

CREATE TABLE IF NOT EXISTS indices (
	index_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	location      INTEGER NOT NULL,
	arrayindex    INTEGER NOT NULL,
	filename      TEXT NOT NULL,
	video_id      TEXT NOT NULL,
	screenshot_id INTEGER NOT NULL,
	runtime       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_indices_location ON indices(location);
CREATE INDEX IF NOT EXISTS idx_indices_filename ON indices(filename);

CREATE TABLE IF NOT EXISTS parameters (
	config_id        INTEGER PRIMARY KEY CHECK (config_id = 1),
	sensitivity      REAL NOT NULL,
	start_directory  TEXT NOT NULL,
	num_threads      INTEGER NOT NULL,
	interval_seconds REAL NOT NULL,
	min_run_length   INTEGER NOT NULL,
	cache_capacity   INTEGER NOT NULL
);
`

// imageScale2 mirrors imagestore's private constant; it's re-derived
// here rather than exported since it's just ImageScale squared and the
// bucket math itself is shared through imagestore.BucketAddr.
const imageScale2 = int(fingerprint.ImageScale) * int(fingerprint.ImageScale)

// IndexEntry is one screenshot descriptor returned by ReturnIndices:
// enough to resolve the full VideoCandidate through ReturnCandidate and
// to know which frame within it matched.
type IndexEntry struct {
	Filename     string
	VideoID      string
	ScreenshotID int
	Runtime      float64
}

// Store is the persistent video candidate store.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	cache *fifoCache
	params Parameters
}

// Open opens (creating if absent) the SQLite database at path, ensures
// the schema exists, and reconciles the parameters row against want:
// a fresh database seeds it; an existing one is overwritten and want is
// adopted if it differs from what's stored.
func Open(path string, want Parameters) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.New(errs.DBFailed, "videostore.Open", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.New(errs.DBFailed, "videostore.Open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.New(errs.DBFailed, "videostore.Open", fmt.Errorf("create schema: %w", err))
	}

	params, err := loadParameters(db, want)
	if err != nil {
		db.Close()
		return nil, errs.New(errs.DBFailed, "videostore.Open", err)
	}

	return &Store{
		db:     db,
		cache:  newFIFOCache(params.CacheCapacity),
		params: params,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Parameters returns the store's current, persisted configuration.
func (s *Store) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Add registers candidate under filename, unchanged if filename is
// already present. It encodes the candidate blob and, for every
// screenshot, inserts one indices row per wavelet bucket its
// fingerprint falls into, the same bucket addressing rule as
// imagestore.Store.Add.
func (s *Store) Add(filename string, candidate video.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM candidates WHERE filename = ?)`, filename).Scan(&exists); err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}
	if exists {
		return nil
	}

	var buf bytes.Buffer
	w := codec.NewWriter(&buf)
	candidate.Encode(w)
	if w.Err() != nil {
		return errs.New(errs.MalformedBlob, "videostore.Add", w.Err())
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO candidates (filename, video_id, data) VALUES (?, ?, ?)`,
		filename, candidate.ID, buf.Bytes()); err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}

	counters, err := nextArrayIndices(tx)
	if err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}

	insertIdx, err := tx.Prepare(`INSERT INTO indices (location, arrayindex, filename, video_id, screenshot_id, runtime) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}
	defer insertIdx.Close()

	for _, shot := range candidate.Screenshots {
		for coefIdx := 1; coefIdx < imageScale2; coefIdx++ {
			coef := shot.Hash.Matrix.Coefs[coefIdx]
			for ch := 0; ch < fingerprint.Channels; ch++ {
				v := coef[ch]
				if math.Abs(v) < shot.Hash.Thresholds[ch] {
					continue
				}
				sign := 0
				if v < 0 {
					sign = 1
				}
				loc := imagestore.BucketAddr(sign, coefIdx, ch)
				next := counters[loc]
				counters[loc] = next + 1
				if _, err := insertIdx.Exec(loc, next, filename, candidate.ID, shot.ScreenshotID, candidate.Runtime); err != nil {
					return errs.New(errs.DBFailed, "videostore.Add", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.DBFailed, "videostore.Add", err)
	}
	s.cache.put(candidate.ID, candidate)
	return nil
}

// nextArrayIndices loads the current max arrayindex per location so Add
// can hand out a monotonically increasing counter without a per-row
// round trip.
func nextArrayIndices(tx *sql.Tx) (map[int]int64, error) {
	rows, err := tx.Query(`SELECT location, MAX(arrayindex) FROM indices GROUP BY location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make(map[int]int64)
	for rows.Next() {
		var loc int
		var max int64
		if err := rows.Scan(&loc, &max); err != nil {
			return nil, err
		}
		counters[loc] = max + 1
	}
	return counters, rows.Err()
}

// Delete drops filename's candidate row and every index row that
// references it, evicting it from the cache if present. Idempotent: a
// missing filename is not an error.
func (s *Store) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var videoID string
	err := s.db.QueryRow(`SELECT video_id FROM candidates WHERE filename = ?`, filename).Scan(&videoID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errs.New(errs.DBFailed, "videostore.Delete", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.DBFailed, "videostore.Delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM indices WHERE filename = ?`, filename); err != nil {
		return errs.New(errs.DBFailed, "videostore.Delete", err)
	}
	if _, err := tx.Exec(`DELETE FROM candidates WHERE filename = ?`, filename); err != nil {
		return errs.New(errs.DBFailed, "videostore.Delete", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.New(errs.DBFailed, "videostore.Delete", err)
	}

	s.cache.evict(videoID)
	return nil
}

// Exchange rekeys old's filename to new across both tables. It returns
// false, with no mutation, if old is absent or new is already taken.
func (s *Store) Exchange(old, new string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldExists, newExists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM candidates WHERE filename = ?)`, old).Scan(&oldExists); err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	if !oldExists {
		return false, nil
	}
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM candidates WHERE filename = ?)`, new).Scan(&newExists); err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	if newExists {
		return false, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE candidates SET filename = ? WHERE filename = ?`, new, old); err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	if _, err := tx.Exec(`UPDATE indices SET filename = ? WHERE filename = ?`, new, old); err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	if err := tx.Commit(); err != nil {
		return false, errs.New(errs.DBFailed, "videostore.Exchange", err)
	}
	return true, nil
}

// ReturnCandidate fetches videoID's candidate, preferring the cache. A
// malformed blob yields a MalformedBlob error for that candidate only
// (not for the store as a whole, per the error handling design).
func (s *Store) ReturnCandidate(videoID string) (video.Candidate, error) {
	s.mu.Lock()
	if cached, ok := s.cache.get(videoID); ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow(`SELECT data FROM candidates WHERE video_id = ? LIMIT 1`, videoID).Scan(&data)
	if err == sql.ErrNoRows {
		return video.Candidate{}, errs.New(errs.NotFound, "videostore.ReturnCandidate", err)
	}
	if err != nil {
		return video.Candidate{}, errs.New(errs.DBFailed, "videostore.ReturnCandidate", err)
	}

	r := codec.NewReader(bytes.NewReader(data))
	c := video.Decode(r)
	if r.Err() != nil {
		return video.Candidate{}, errs.New(errs.MalformedBlob, "videostore.ReturnCandidate", r.Err())
	}

	s.mu.Lock()
	s.cache.put(videoID, c)
	s.mu.Unlock()
	return c, nil
}

// ReturnIndices fetches every screenshot descriptor filed under
// location, ordered by insertion (arrayindex).
func (s *Store) ReturnIndices(location int) ([]IndexEntry, error) {
	rows, err := s.db.Query(`SELECT filename, video_id, screenshot_id, runtime FROM indices WHERE location = ? ORDER BY arrayindex`, location)
	if err != nil {
		return nil, errs.New(errs.DBFailed, "videostore.ReturnIndices", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.Filename, &e.VideoID, &e.ScreenshotID, &e.Runtime); err != nil {
			return nil, errs.New(errs.DBFailed, "videostore.ReturnIndices", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
