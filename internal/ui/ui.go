// Package ui implements the swappable progress Reporter (spec.md §4.6):
// a spinner while a job is in flight, and a post-mining summary line.
package ui

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/briandowns/spinner"
)

// Summary is reported once a search run completes.
type Summary struct {
	Processed uint64
	Elapsed   time.Duration
}

// HashesPerSecond computes the standard H/s figure, floor-dividing elapsed
// seconds at 1 to avoid a divide-by-zero on very short runs (spec.md §4.6).
func (s Summary) HashesPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs < 1 {
		secs = 1
	}
	return float64(s.Processed) / secs
}

// Reporter is the UI surface's interface. Any implementation is
// interchangeable; nothing outside this package depends on spinner.
type Reporter interface {
	Begin(label string)
	Tick()
	Finish()
	Report(summary Summary)
}

// Spinner is the default Reporter: an ASCII spinner on platforms without a
// richer glyph set, braille glyphs elsewhere, ticking at ~8Hz (spec.md §4.6).
type Spinner struct {
	out io.Writer
	s   *spinner.Spinner
}

// NewSpinner builds the default Reporter writing to out.
func NewSpinner(out io.Writer) *Spinner {
	charset := spinner.CharSets[11] // braille glyphs
	if runtime.GOOS == "windows" {
		charset = spinner.CharSets[9] // ASCII fallback
	}
	s := spinner.New(charset, 125*time.Millisecond)
	s.Writer = out
	return &Spinner{out: out, s: s}
}

// Begin starts the spinner with the given label.
func (r *Spinner) Begin(label string) {
	r.s.Suffix = " " + label
	r.s.Start()
}

// Tick is a no-op for the spinner implementation: briandowns/spinner ticks
// itself on its own goroutine once started.
func (r *Spinner) Tick() {}

// Finish stops the spinner and clears the line.
func (r *Spinner) Finish() {
	r.s.Stop()
}

// Report prints the post-mining summary lines.
func (r *Spinner) Report(summary Summary) {
	fmt.Fprintf(r.out, "processed: %d\n", summary.Processed)
	fmt.Fprintf(r.out, "elapsed: %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(r.out, "hashpower: %.2f H/s\n", summary.HashesPerSecond())
}

// Nop is a Reporter that does nothing, used by tests and non-interactive
// callers.
type Nop struct{}

// Begin implements Reporter.
func (Nop) Begin(string) {}

// Tick implements Reporter.
func (Nop) Tick() {}

// Finish implements Reporter.
func (Nop) Finish() {}

// Report implements Reporter.
func (Nop) Report(Summary) {}
