package checkpointer

import (
	"fmt"
	"time"
)

// DatetimeLayout is the layout of the date and time in filenames
// returned by FileTimer
const DatetimeLayout = "2006-01-02_15-04-05"

// FileTimer returns a function which will append to a filename the
// current date and time and the number of environment steps taken,
// e.g. filename_2021-06-30_14-03-59_10000.gob
func FileTimer(filename, extension string) func(int) string {
	return fileTimer(filename, extension, time.Now)
}

func fileTimer(filename, extension string,
	now func() time.Time) func(int) string {
	return func(timeSteps int) string {
		return fmt.Sprintf("%v_%v_%v%v", filename,
			now().Format(DatetimeLayout), timeSteps, extension)
	}
}
