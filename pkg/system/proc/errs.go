package proc

import "errors"

var (
	// ErrNoProcTable indicates that the process table itself could not
	// be read. The whole sampling pass is lost; callers skip the tick
	// and retry on the next one.
	ErrNoProcTable = errors.New("proc: process table unreadable")
)
