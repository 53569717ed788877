// Package checkpointer implements periodic saving of agents during an
// experiment
package checkpointer

// Saver is an object that can be saved to a file. If names are given,
// only the named parts of the object are saved.
type Saver interface {
	Save(path string, names ...string) error
}

// Checkpointer checkpoints/saves objects based on the iteration and
// number of environment steps of an experiment. If a checkpoint was
// saved, its filename is returned, otherwise the returned filename is
// empty.
type Checkpointer interface {
	Checkpoint(iteration, timeSteps int) (string, error)
}
