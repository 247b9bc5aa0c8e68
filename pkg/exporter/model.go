package exporter

import (
	"time"

	"github.com/ja7ad/userstat/pkg/types"
)

// UserUsage is the per-uid working value of a single tick: every
// sample belonging to the uid summed together. It never outlives the
// tick that produced it.
type UserUsage struct {
	UID        uint32
	User       string
	CPUSeconds float64
	Memory     types.Bytes
}

// UserRecord is the durable per-user state. A record exists exactly as
// long as the user has been observed within the grace period.
type UserRecord struct {
	UID  uint32
	User string

	// CPUPercent is the last computed usage over the measured elapsed
	// time between observations. Reported as-is, no clamping at the
	// top (a multi-core user legitimately exceeds 100).
	CPUPercent float64

	// Memory is the last observed total resident memory.
	Memory types.Bytes

	// LastSeen is the tick timestamp of the most recent observation.
	LastSeen time.Time

	// LastCPUSeconds is the cumulative counter at LastSeen, the
	// baseline for the next delta.
	LastCPUSeconds float64
}

// Snapshot is a consistent point-in-time export view. Users carries
// only records passing the export filters, ordered by username; the
// totals cover all tracked users unless TotalsExportedOnly is set.
type Snapshot struct {
	TotalCPUPercent float64
	TotalMemory     types.Bytes
	Users           []UserRecord
}
