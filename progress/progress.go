// Package progress defines the progress-reporting interface the
// engine drives during a scan, plus a terminal-bar default
// implementation. Tests and non-interactive callers use NoOp instead.
package progress

import "github.com/schollz/progressbar/v3"

// Reporter is driven by the ingest pipeline as work completes. Add
// reports incremental progress, Describe changes the label shown
// alongside it, and Close finalizes the display.
type Reporter interface {
	Add(delta int)
	Describe(s string)
	Close() error
}

// Bar is the default Reporter, backed by a terminal progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar returns a Reporter that renders a terminal bar with the given
// total unit count. total <= 0 renders a spinner instead of a
// percentage bar.
func NewBar(total int, description string) *Bar {
	return &Bar{bar: progressbar.Default(int64(total), description)}
}

func (b *Bar) Add(delta int) {
	b.bar.Add(delta)
}

func (b *Bar) Describe(s string) {
	b.bar.Describe(s)
}

func (b *Bar) Close() error {
	return b.bar.Close()
}

// NoOp discards every call. Used by tests and library callers that
// don't want terminal output.
type NoOp struct{}

func (NoOp) Add(int)        {}
func (NoOp) Describe(string) {}
func (NoOp) Close() error   { return nil }
