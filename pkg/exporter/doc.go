// Package exporter aggregates per-process samples into per-user CPU
// and memory gauges and serves them over a Prometheus scrape endpoint.
//
// # Pipeline
//
// A Runner drives the cycle: every interval it asks a proc.Lister for
// the live process table and hands the samples to the Aggregator. The
// Aggregator groups samples by uid, converts cumulative CPU counters
// into a percentage over the measured elapsed time, and owns the
// per-user record lifecycle:
//
//	unseen -> active (observed within the grace period) -> expired
//
// An active user absent from a tick keeps its last known values; once
// its absence strictly exceeds the grace period the record is deleted
// and the series disappears from the exposition. A uid observed again
// after expiry is a brand-new user with a fresh baseline.
//
// # Filtering
//
// The cpu threshold, the uid < 1000 system-account exclusion and the
// excluded-username set apply at export time only. Storage keeps every
// observed user, so filtering is a view concern and a user crossing
// the threshold in either direction never loses its delta baseline.
//
// # Concurrency
//
// Tick is the only writer; scrape handlers call Export, which copies
// the records under a read lock. A scrape therefore always sees a
// consistent snapshot of the last completed tick, even while the next
// tick is being folded in.
package exporter
