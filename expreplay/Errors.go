package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errEmptyCache error = errors.New("cache empty")

var errInvalidShape = errors.New("transition shape does not match buffer")

var errInvalidBatchSize = errors.New("batch size must be > 0")

// IsEmptyBuffer returns whether or not an error reports that a
// replay buffer is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyCache)
}

// IsInvalidShape returns whether or not an error reports that a
// transition could not be added to a buffer because its shape does not
// match the shape of transitions stored in the buffer.
func IsInvalidShape(err error) bool {
	return errors.Is(err, errInvalidShape)
}

// IsInvalidBatchSize returns whether or not an error reports that a
// non-positive batch size was requested.
func IsInvalidBatchSize(err error) bool {
	return errors.Is(err, errInvalidBatchSize)
}
