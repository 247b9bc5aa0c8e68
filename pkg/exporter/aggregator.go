package exporter

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-set"

	"github.com/ja7ad/userstat/pkg/system/proc"
)

// Uids below this belong to system accounts.
const systemUIDCeiling = 1000

// Aggregator turns successive sampling passes into per-user CPU
// percentages and owns the lifecycle of the per-user records,
// including grace-period expiry of users with no live processes.
//
// Tick is called by the polling loop; Export by scrape handlers. The
// two run concurrently and share the record map under the usual
// writer-exclusive discipline.
type Aggregator struct {
	cfg      Config
	excluded *set.Set[string]

	mu      sync.RWMutex
	records map[uint32]*UserRecord
}

// NewAggregator validates cfg and returns an empty aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		cfg:      cfg,
		excluded: set.From(cfg.ExcludeUsers),
		records:  make(map[uint32]*UserRecord),
	}, nil
}

// Tick folds one sampling pass into the durable records.
//
// Users present this pass get their percentage recomputed from the
// cumulative-counter delta over the measured elapsed time (not the
// nominal interval, so scheduling jitter does not skew the rate).
// Users absent this pass keep their last known values until the grace
// period runs out, then their record is dropped. A uid coming back
// after expiry starts over with a fresh baseline; comparing against an
// ancient counter would fabricate a huge spike.
func (a *Aggregator) Tick(samples []proc.ProcessSample, now time.Time) {
	usage := groupByUID(samples)

	a.mu.Lock()
	defer a.mu.Unlock()

	for uid, u := range usage {
		rec, ok := a.records[uid]
		if !ok {
			// First observation: no baseline, no rate yet.
			a.records[uid] = &UserRecord{
				UID:            uid,
				User:           u.User,
				Memory:         u.Memory,
				LastSeen:       now,
				LastCPUSeconds: u.CPUSeconds,
			}
			continue
		}

		pct := 0.0
		if elapsed := now.Sub(rec.LastSeen).Seconds(); elapsed > 0 {
			pct = 100 * (u.CPUSeconds - rec.LastCPUSeconds) / elapsed
		}
		if pct < 0 {
			// Counter reset: the uid's processes restarted with a
			// lower cumulative value. Never export a negative rate.
			pct = 0
		}

		rec.CPUPercent = pct
		rec.Memory = u.Memory
		rec.User = u.User
		rec.LastCPUSeconds = u.CPUSeconds
		rec.LastSeen = now
	}

	for uid, rec := range a.records {
		if _, ok := usage[uid]; ok {
			continue
		}
		if now.Sub(rec.LastSeen) > a.cfg.GracePeriod {
			delete(a.records, uid)
		}
	}
}

// Export returns a consistent snapshot for the metrics endpoint.
// Filtering happens here and only here; the record map keeps every
// tracked user so a user dipping below the threshold and back does not
// lose its baseline.
func (a *Aggregator) Export() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{Users: make([]UserRecord, 0, len(a.records))}
	for _, rec := range a.records {
		exported := a.exportable(rec)
		if exported {
			snap.Users = append(snap.Users, *rec)
		}
		if exported || !a.cfg.TotalsExportedOnly {
			snap.TotalCPUPercent += rec.CPUPercent
			snap.TotalMemory += rec.Memory
		}
	}

	sort.Slice(snap.Users, func(i, j int) bool {
		return snap.Users[i].User < snap.Users[j].User
	})
	return snap
}

// Tracked returns the number of users currently held, filtered or not.
func (a *Aggregator) Tracked() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

func (a *Aggregator) exportable(rec *UserRecord) bool {
	if a.cfg.ExcludeSystemUsers && rec.UID < systemUIDCeiling {
		return false
	}
	if a.excluded.Contains(rec.User) {
		return false
	}
	return rec.CPUPercent >= a.cfg.CPUThreshold
}

func groupByUID(samples []proc.ProcessSample) map[uint32]UserUsage {
	usage := make(map[uint32]UserUsage)
	for _, s := range samples {
		u := usage[s.UID]
		u.UID = s.UID
		u.User = s.User
		u.CPUSeconds += s.CPUSeconds
		u.Memory += s.ResidentBytes
		usage[s.UID] = u
	}
	return usage
}
