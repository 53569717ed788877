package trackers

import (
	"github.com/samuelfneumann/gosac/experiment/tracker"
	"go.uber.org/zap"
)

// Zap writes each row of the log stream as a structured log entry
type Zap struct {
	logger *zap.Logger
}

// NewZap returns a new Zap tracker logging to logger at Info level
func NewZap(logger *zap.Logger) tracker.Tracker {
	return &Zap{logger}
}

// Header logs the names of the tracked statistics
func (z *Zap) Header(names []string) error {
	z.logger.Info("tracking statistics", zap.Strings("stats", names))
	return nil
}

// Track logs a row
func (z *Zap) Track(row tracker.Row) error {
	fields := make([]zap.Field, 0, len(row.Names)+1)
	fields = append(fields, zap.Int("time_steps", row.TimeSteps))
	for i, name := range row.Names {
		fields = append(fields, zap.Float64(name, row.Values[i]))
	}
	z.logger.Info("training statistics", fields...)
	return nil
}
