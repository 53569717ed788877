package trackers

import (
	"io"

	"github.com/samuelfneumann/gosac/experiment/tracker"
	"github.com/samuelfneumann/gosac/utils/progressbar"
)

// Progress displays the fraction of a budget of environment steps
// taken as a progress bar
type Progress struct {
	bar *progressbar.ManualProgressBar
}

// NewProgress returns a new Progress tracker printing a bar of width
// characters to out that is full after maxTimeSteps environment steps
func NewProgress(out io.Writer, width, maxTimeSteps int) tracker.Tracker {
	return &Progress{progressbar.NewManualProgressBar(out, width,
		maxTimeSteps)}
}

// Header implements the tracker.Tracker interface
func (p *Progress) Header([]string) error {
	p.bar.Set(0)
	return nil
}

// Track displays the progress bar at row.TimeSteps
func (p *Progress) Track(row tracker.Row) error {
	p.bar.Set(row.TimeSteps)
	return p.bar.Display()
}
