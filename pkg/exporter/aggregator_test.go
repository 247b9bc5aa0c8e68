package exporter

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/userstat/pkg/system/proc"
	"github.com/ja7ad/userstat/pkg/types"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ps(uid uint32, user string, cpu float64, mem uint64) proc.ProcessSample {
	return proc.ProcessSample{
		PID:           int(uid) * 10,
		UID:           uid,
		User:          user,
		CPUSeconds:    cpu,
		ResidentBytes: types.Bytes(mem),
	}
}

// testConfig has the threshold zeroed so records show up in exports
// unless a test opts back in.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CPUThreshold = 0
	return cfg
}

func newTestAggregator(t *testing.T, cfg Config) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(cfg)
	require.NoError(t, err)
	return agg
}

func TestNewAggregator_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Second
	cfg.GracePeriod = 5 * time.Second

	_, err := NewAggregator(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestTick_FirstObservationHasZeroPercent(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 123.4, 2048)}, t0)

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].User)
	assert.Zero(t, snap.Users[0].CPUPercent, "no baseline yet, never a spurious rate")
	assert.Equal(t, types.Bytes(2048), snap.Users[0].Memory)
}

func TestTick_PercentFromCounterDelta(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	// Two processes owned by uid 1001: 2.0s and 3.0s cumulative.
	agg.Tick([]proc.ProcessSample{
		ps(1001, "alice", 2.0, 1000),
		{PID: 42, UID: 1001, User: "alice", CPUSeconds: 3.0, ResidentBytes: 500},
	}, t0)

	// Ten seconds later: 4.0s and 5.0s.
	agg.Tick([]proc.ProcessSample{
		ps(1001, "alice", 4.0, 1000),
		{PID: 42, UID: 1001, User: "alice", CPUSeconds: 5.0, ResidentBytes: 500},
	}, t0.Add(10*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	// 100 * ((4+5)-(2+3)) / 10
	assert.InDelta(t, 40.0, snap.Users[0].CPUPercent, 1e-9)
	assert.Equal(t, types.Bytes(1500), snap.Users[0].Memory)
}

func TestTick_UsesMeasuredElapsedNotNominal(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 0, 0)}, t0)
	// The timer fired late: 20s elapsed instead of the nominal 10s.
	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 5, 0)}, t0.Add(20*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.InDelta(t, 25.0, snap.Users[0].CPUPercent, 1e-9)
}

func TestTick_CounterResetClampsToZero(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 50, 0)}, t0)
	// Process restarted under the same uid: cumulative went backwards.
	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 1, 0)}, t0.Add(10*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Zero(t, snap.Users[0].CPUPercent)
}

func TestTick_GracePeriodBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 10 * time.Second
	cfg.GracePeriod = 60 * time.Second
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 2, 4096)}, t0)

	// alice absent from every subsequent tick.
	for _, offset := range []time.Duration{10, 20, 30, 40, 50, 59} {
		agg.Tick(nil, t0.Add(offset*time.Second))
		snap := agg.Export()
		require.Len(t, snap.Users, 1, "still within grace at t+%s", offset*time.Second)
		assert.Equal(t, types.Bytes(4096), snap.Users[0].Memory, "last known values retained")
	}

	// Exactly at the grace period: elapsed is not strictly greater, keep it.
	agg.Tick(nil, t0.Add(60*time.Second))
	assert.Equal(t, 1, agg.Tracked())

	agg.Tick(nil, t0.Add(61*time.Second))
	assert.Zero(t, agg.Tracked())
	assert.Empty(t, agg.Export().Users)
}

func TestTick_ReappearanceAfterExpiryIsFresh(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 500, 0)}, t0)
	agg.Tick(nil, t0.Add(2*time.Minute)) // well past grace, record dropped
	require.Zero(t, agg.Tracked())

	// Re-observed with a huge cumulative counter. Against the ancient
	// baseline this would read as an enormous spike; as a fresh first
	// observation it must be zero.
	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 9000, 0)}, t0.Add(3*time.Minute))
	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Zero(t, snap.Users[0].CPUPercent)
}

func TestExport_ThresholdFiltersSeriesNotTotals(t *testing.T) {
	cfg := testConfig()
	cfg.CPUThreshold = 5.0
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{
		ps(1001, "alice", 0, 100),
		ps(1002, "bob", 0, 200),
	}, t0)
	agg.Tick([]proc.ProcessSample{
		ps(1001, "alice", 0.49, 100), // 4.9%, below threshold
		ps(1002, "bob", 2.0, 200),    // 20%
	}, t0.Add(10*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "bob", snap.Users[0].User)
	// Totals still cover the filtered-out user.
	assert.InDelta(t, 24.9, snap.TotalCPUPercent, 1e-9)
	assert.Equal(t, types.Bytes(300), snap.TotalMemory)
}

func TestExport_ThresholdDipKeepsBaseline(t *testing.T) {
	cfg := testConfig()
	cfg.CPUThreshold = 5.0
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 0, 0)}, t0)
	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 0.1, 0)}, t0.Add(10*time.Second)) // 1%, hidden
	require.Empty(t, agg.Export().Users)

	// Back above threshold; the delta must use the 0.1s baseline from
	// the hidden tick, not lose history.
	agg.Tick([]proc.ProcessSample{ps(1001, "alice", 1.1, 0)}, t0.Add(20*time.Second))
	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.InDelta(t, 10.0, snap.Users[0].CPUPercent, 1e-9)
}

func TestExport_ExcludeSystemUsers(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludeSystemUsers = true
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{
		ps(0, "root", 0, 100),
		ps(999, "daemon", 0, 100),
		ps(1000, "alice", 0, 100),
	}, t0)
	agg.Tick([]proc.ProcessSample{
		ps(0, "root", 1, 100),
		ps(999, "daemon", 1, 100),
		ps(1000, "alice", 1, 100),
	}, t0.Add(10*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].User)
	assert.Equal(t, uint32(1000), snap.Users[0].UID, "uid 1000 is the first non-system uid")
	// True system totals still include the system users.
	assert.InDelta(t, 30.0, snap.TotalCPUPercent, 1e-9)
	assert.Equal(t, types.Bytes(300), snap.TotalMemory)
}

func TestExport_TotalsExportedOnly(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludeSystemUsers = true
	cfg.TotalsExportedOnly = true
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{
		ps(0, "root", 0, 100),
		ps(1001, "alice", 0, 100),
	}, t0)
	agg.Tick([]proc.ProcessSample{
		ps(0, "root", 1, 100),
		ps(1001, "alice", 2, 100),
	}, t0.Add(10*time.Second))

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.InDelta(t, 20.0, snap.TotalCPUPercent, 1e-9)
	assert.Equal(t, types.Bytes(100), snap.TotalMemory)
}

func TestExport_ExcludedUsernames(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludeUsers = []string{"root"}
	agg := newTestAggregator(t, cfg)

	agg.Tick([]proc.ProcessSample{
		ps(0, "root", 0, 100),
		ps(1001, "alice", 0, 100),
	}, t0)

	snap := agg.Export()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].User)
}

func TestExport_OrderedByUsername(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	agg.Tick([]proc.ProcessSample{
		ps(1003, "carol", 0, 0),
		ps(1001, "alice", 0, 0),
		ps(1002, "bob", 0, 0),
	}, t0)

	snap := agg.Export()
	require.Len(t, snap.Users, 3)
	assert.Equal(t, "alice", snap.Users[0].User)
	assert.Equal(t, "bob", snap.Users[1].User)
	assert.Equal(t, "carol", snap.Users[2].User)
}

func TestExport_NeverNegativePercent(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	// An adversarial counter sequence with resets in the middle.
	cumulative := []float64{10, 50, 3, 3, 200, 1}
	now := t0
	for _, c := range cumulative {
		agg.Tick([]proc.ProcessSample{ps(1001, "alice", c, 0)}, now)
		for _, u := range agg.Export().Users {
			assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
		}
		now = now.Add(10 * time.Second)
	}
}

func TestAggregator_ConcurrentTickAndExport(t *testing.T) {
	agg := newTestAggregator(t, testConfig())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		now := t0
		for i := 0; i < 500; i++ {
			agg.Tick([]proc.ProcessSample{
				ps(1001, "alice", float64(i), uint64(i)),
				ps(1002, "bob", float64(i*2), uint64(i)),
			}, now)
			now = now.Add(time.Second)
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := agg.Export()
				// A scrape must never see a half-updated record.
				for _, u := range snap.Users {
					assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
					assert.False(t, u.LastSeen.IsZero())
				}
			}
		}()
	}

	wg.Wait()
}
