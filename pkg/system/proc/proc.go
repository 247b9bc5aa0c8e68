package proc

import "github.com/ja7ad/userstat/pkg/types"

// ProcessSample is one process as seen at a single sampling pass.
// CPUSeconds is the cumulative CPU time (user+system) the process has
// consumed since it started; it never decreases while the process
// lives. Samples are transient and are not retained across passes.
type ProcessSample struct {
	PID           int
	UID           uint32
	User          string
	CPUSeconds    float64
	ResidentBytes types.Bytes
}

// Lister enumerates live processes. Implementations must treat a
// process vanishing mid-enumeration as normal and skip it; only the
// process table itself being unreadable is an error.
type Lister interface {
	List() ([]ProcessSample, error)
}
