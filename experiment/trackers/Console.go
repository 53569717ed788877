package trackers

import (
	"fmt"
	"io"
	"strings"

	"github.com/samuelfneumann/gosac/experiment/tracker"
)

// columnWidth is the width of each column printed by Console
const columnWidth = 12

// Console prints each row of the log stream as a two line table of
// fixed width columns, the first line holding the column names and the
// second their values.
type Console struct {
	out io.Writer
}

// NewConsole returns a new Console tracker printing to out
func NewConsole(out io.Writer) tracker.Tracker {
	return &Console{out}
}

// Header implements the tracker.Tracker interface. The header is
// printed with each row, so Header does nothing.
func (c *Console) Header([]string) error {
	return nil
}

// Track prints a row
func (c *Console) Track(row tracker.Row) error {
	var names, values strings.Builder

	fmt.Fprintf(&names, "%*s", columnWidth, "time_steps")
	fmt.Fprintf(&values, "%*d", columnWidth, row.TimeSteps)
	for i, name := range row.Names {
		fmt.Fprintf(&names, "\t%*s", columnWidth, name)
		fmt.Fprintf(&values, "\t%*.6f", columnWidth, row.Values[i])
	}

	_, err := fmt.Fprintf(c.out, "%v\n%v\n", names.String(), values.String())
	return err
}
