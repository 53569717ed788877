package trackers

import (
	"fmt"

	"github.com/samuelfneumann/gosac/experiment/tracker"
	"gonum.org/v1/gonum/mat"
)

// EpisodeLength tracks and saves the lengths of episodes of a
// vectorized environment.
//
// Note that an episode must finish for this Tracker to store its
// length.
type EpisodeLength struct {
	currentLengths []int
	episodeLengths []int
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength tracker for numEnvs
// sub-environments which will save its data at filename
func NewEpisodeLength(numEnvs int, filename string) *EpisodeLength {
	return &EpisodeLength{
		currentLengths: make([]int, numEnvs),
		filename:       filename,
	}
}

var _ tracker.StepTracker = &EpisodeLength{}

// TrackStep counts one step in each sub-environment and stores the
// length of every episode that ended on this step.
func (e *EpisodeLength) TrackStep(rewards, dones *mat.VecDense) {
	if dones.Len() != len(e.currentLengths) {
		panic(fmt.Sprintf("trackStep: expected %v sub-environments but "+
			"got %v", len(e.currentLengths), dones.Len()))
	}

	for i := range e.currentLengths {
		e.currentLengths[i]++
		if dones.AtVec(i) != 0 {
			e.episodeLengths = append(e.episodeLengths, e.currentLengths[i])
			e.currentLengths[i] = 0
		}
	}
}

// Data returns the lengths of all finished episodes
func (e *EpisodeLength) Data() []int {
	return append([]int(nil), e.episodeLengths...)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.episodeLengths)
}
