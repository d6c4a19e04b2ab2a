package imagestore

// Match represents one candidate returned by a similarity query. Score
// is lower-is-better: strongly negative scores indicate near-duplicate
// images.
type Match struct {
	ID                string
	Score             float64
	RatioDiff         float64
	DHashDistance     uint32
	HistogramDistance uint32
}

// Matches is a result set, kept in ascending-score order.
type Matches []Match

func (m Matches) Len() int           { return len(m) }
func (m Matches) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m Matches) Less(i, j int) bool { return m[i].Score < m[j].Score }
