// Package proc samples the live process table on Linux.
//
// The single entry point is the Lister interface:
//
//	List() ([]ProcessSample, error)
//
// Each ProcessSample carries the owning uid (resolved to a username,
// falling back to the numeric uid for users missing from the user
// database), the process's cumulative CPU seconds and its resident
// memory in bytes. CPU time is a monotonic counter, not a rate; rate
// computation belongs to the consumer (see pkg/exporter), which takes
// deltas between successive passes.
//
// Error contract:
//
//   - A process disappearing between enumeration and detail reads is
//     skipped silently. Under a live process table this happens on
//     basically every pass and must never abort a sample.
//   - Only the process table itself being unreadable is reported, as
//     an error wrapping ErrNoProcTable.
//
// The proc mountpoint is a constructor argument so tests can point the
// lister at a synthetic tree.
package proc
