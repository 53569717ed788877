package checkpointer

import "fmt"

// nStep implements checkpointing every N iterations
type nStep struct {
	interval int
	object   Saver // Object to save

	// filename returns the string filename of the file to save the object
	// in given the number of environment steps taken.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.gob, file2.gob, ..., fileK.gob), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames.
	//
	// Otherwise, if each file should be named by the time it was saved
	// and the progress of the experiment, use the static function
	// FileTimer to generate the required naming function. For example:
	//
	// n := NewNStep(10, object, FileTimer("filename", ".gob"))
	filename func(timeSteps int) string
}

// NewNStep returns a checkpointer that checkpoints every n iterations.
// If n <= 0, the checkpointer never checkpoints.
func NewNStep(n int, object Saver,
	filename func(timeSteps int) string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint checkpoints the Checkpointer's tracked object by calling
// its Save() method
func (n *nStep) Checkpoint(iteration, timeSteps int) (string, error) {
	if n.interval <= 0 || iteration%n.interval != 0 {
		return "", nil
	}

	filename := n.filename(timeSteps)
	if err := n.object.Save(filename); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	return filename, nil
}
