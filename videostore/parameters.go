package videostore

import (
	"database/sql"
	"fmt"
)

// Parameters is the singleton configuration row persisted alongside the
// candidate and index tables. A fresh database is seeded with the
// caller's values on first open; a caller that opens an existing database with different values
// overwrites the row and adopts the new values.
type Parameters struct {
	Sensitivity     float64
	StartDirectory  string
	NumThreads      int
	IntervalSeconds float64
	MinRunLength    int
	CacheCapacity   int
}

func loadParameters(db *sql.DB, want Parameters) (Parameters, error) {
	var got Parameters
	row := db.QueryRow(`SELECT sensitivity, start_directory, num_threads, interval_seconds, min_run_length, cache_capacity FROM parameters WHERE config_id = 1`)
	err := row.Scan(&got.Sensitivity, &got.StartDirectory, &got.NumThreads, &got.IntervalSeconds, &got.MinRunLength, &got.CacheCapacity)
	switch {
	case err == sql.ErrNoRows:
		if err := insertParameters(db, want); err != nil {
			return Parameters{}, err
		}
		return want, nil
	case err != nil:
		return Parameters{}, fmt.Errorf("videostore: load parameters: %w", err)
	}

	if got != want {
		if err := updateParameters(db, want); err != nil {
			return Parameters{}, err
		}
		return want, nil
	}
	return got, nil
}

func insertParameters(db *sql.DB, p Parameters) error {
	_, err := db.Exec(`INSERT INTO parameters (config_id, sensitivity, start_directory, num_threads, interval_seconds, min_run_length, cache_capacity) VALUES (1, ?, ?, ?, ?, ?, ?)`,
		p.Sensitivity, p.StartDirectory, p.NumThreads, p.IntervalSeconds, p.MinRunLength, p.CacheCapacity)
	if err != nil {
		return fmt.Errorf("videostore: insert parameters: %w", err)
	}
	return nil
}

func updateParameters(db *sql.DB, p Parameters) error {
	_, err := db.Exec(`UPDATE parameters SET sensitivity = ?, start_directory = ?, num_threads = ?, interval_seconds = ?, min_run_length = ?, cache_capacity = ? WHERE config_id = 1`,
		p.Sensitivity, p.StartDirectory, p.NumThreads, p.IntervalSeconds, p.MinRunLength, p.CacheCapacity)
	if err != nil {
		return fmt.Errorf("videostore: update parameters: %w", err)
	}
	return nil
}
