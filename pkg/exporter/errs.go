package exporter

import "errors"

var (
	// ErrConfig indicates an invalid configuration. It is fatal at
	// startup, before the metrics listener binds.
	ErrConfig = errors.New("exporter: invalid config")
)
