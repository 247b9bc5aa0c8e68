package exporter

import (
	"fmt"
	"time"
)

// Defaults mirror the flag defaults of the userstat command.
const (
	DefaultInterval     = 10 * time.Second
	DefaultGracePeriod  = 60 * time.Second
	DefaultCPUThreshold = 5.0
	DefaultPort         = 8010
)

// Config is the typed configuration consumed by the aggregator, runner
// and HTTP server. Flag parsing lives in cmd; everything here is
// already parsed and only needs validating.
type Config struct {
	// Interval is the sampling period of the polling loop.
	Interval time.Duration

	// GracePeriod is how long a user's last known metrics stay
	// exported after its last live process disappears. Must be at
	// least Interval, otherwise an entry could never survive a single
	// missed tick.
	GracePeriod time.Duration

	// CPUThreshold is the minimum cpu percentage a user must show to
	// appear in the per-user series. Applied at export time only.
	CPUThreshold float64

	// Port for the metrics HTTP listener.
	Port int

	// ExcludeSystemUsers drops uid < 1000 from the per-user series.
	ExcludeSystemUsers bool

	// ExcludeUsers drops the named users from the per-user series.
	ExcludeUsers []string

	// TotalsExportedOnly restricts the total gauges to users passing
	// the export filters. The default (false) reports true system
	// totals across everything tracked.
	TotalsExportedOnly bool
}

// DefaultConfig returns a Config pre-filled with the exporter defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		GracePeriod:  DefaultGracePeriod,
		CPUThreshold: DefaultCPUThreshold,
		Port:         DefaultPort,
	}
}

// Validate reports the first problem found, wrapped with ErrConfig so
// callers can errors.Is for the class.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrConfig, c.Interval)
	}
	if c.GracePeriod < c.Interval {
		return fmt.Errorf("%w: grace period %s shorter than interval %s", ErrConfig, c.GracePeriod, c.Interval)
	}
	if c.CPUThreshold < 0 {
		return fmt.Errorf("%w: cpu threshold must be >= 0, got %g", ErrConfig, c.CPUThreshold)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", ErrConfig, c.Port)
	}
	return nil
}
