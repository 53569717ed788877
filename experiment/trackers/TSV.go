// Package trackers implements sinks of the log stream of an agent and
// trackers of per-step environment data
package trackers

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/samuelfneumann/gosac/experiment/tracker"
)

// TSV writes the log stream to a tab-separated file. The first column
// is the number of environment steps, followed by one column per
// statistic.
//
// The file is truncated and its header is written when Header is
// called. Each call to Track appends a single row, so the file is
// readable while an experiment is running.
type TSV struct {
	filename string
}

// NewTSV returns a new TSV tracker writing to filename
func NewTSV(filename string) tracker.Tracker {
	return &TSV{filename}
}

// Header truncates the file and writes its header
func (t *TSV) Header(names []string) error {
	file, err := os.Create(t.filename)
	if err != nil {
		return fmt.Errorf("header: could not create log file: %w", err)
	}

	w := bufio.NewWriter(file)
	w.WriteString("time_steps")
	for _, name := range names {
		w.WriteString("\t")
		w.WriteString(name)
	}
	w.WriteString("\n")

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("header: could not write log file: %w", err)
	}
	return file.Close()
}

// Track appends a row to the file
func (t *TSV) Track(row tracker.Row) error {
	file, err := os.OpenFile(t.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0644)
	if err != nil {
		return fmt.Errorf("track: could not open log file: %w", err)
	}

	w := bufio.NewWriter(file)
	w.WriteString(strconv.Itoa(row.TimeSteps))
	for _, v := range row.Values {
		w.WriteString("\t")
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	w.WriteString("\n")

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("track: could not write log file: %w", err)
	}
	return file.Close()
}
