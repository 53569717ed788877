// Package tracker defines the sinks of the log stream of an agent and
// of per-step environment data in an experiment
package tracker

import "gonum.org/v1/gonum/mat"

// Row is one row of the log stream: the values of a set of named
// statistics after some number of environment steps
type Row struct {
	TimeSteps int
	Names     []string
	Values    []float64
}

// Value returns the value of the statistic name and whether it is in
// the Row
func (r Row) Value(name string) (float64, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Tracker is a sink of the log stream of an agent. Header is called
// once per run with the names of the statistics that will be tracked,
// and Track is called for each row of the log stream.
type Tracker interface {
	Header(names []string) error
	Track(row Row) error
}

// StepTracker tracks per-step data of a vectorized environment, with
// one entry per sub-environment in rewards and dones
type StepTracker interface {
	TrackStep(rewards, dones *mat.VecDense)
}
