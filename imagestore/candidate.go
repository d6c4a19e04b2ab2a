package imagestore

import "github.com/kestrelav/simdup/fingerprint/haar"

// candidate is one image held by the Store: enough of its Hash to
// score a query against it, plus the ID the caller gets back. A
// deleted candidate is tombstoned in place (id cleared, tombstone set)
// rather than removed, so every other slot's index stays valid.
type candidate struct {
	id        string
	tombstone bool

	// scaleCoef is the Haar scaling-function coefficient (position 0).
	scaleCoef haar.Coef

	ratio     float64
	dhash     [2]uint64
	histogram uint64
	histoMax  [3]float64
}
