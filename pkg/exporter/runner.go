package exporter

import (
	"context"
	"time"

	"go.uber.org/zap"
	"oss.indeed.com/go/libtime"

	"github.com/ja7ad/userstat/pkg/logutil"
	"github.com/ja7ad/userstat/pkg/system/proc"
)

// Runner is the polling loop: one sampling pass fed into the
// aggregator per interval. A failed pass skips the tick and keeps the
// exported state at the last good one; the loop never dies over a bad
// sample.
type Runner struct {
	lister   proc.Lister
	agg      *Aggregator
	interval time.Duration
	clock    libtime.Clock
	logger   *zap.Logger
}

func NewRunner(lister proc.Lister, agg *Aggregator, interval time.Duration) *Runner {
	return &Runner{
		lister:   lister,
		agg:      agg,
		interval: interval,
		clock:    libtime.SystemClock(),
		logger:   logutil.GetLogger(),
	}
}

// Run blocks until ctx is cancelled. The first pass happens
// immediately so the baselines exist before the first full interval
// elapses.
func (r *Runner) Run(ctx context.Context) {
	r.once()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("polling loop stopped")
			return
		case <-ticker.C:
			r.once()
		}
	}
}

func (r *Runner) once() {
	samples, err := r.lister.List()
	if err != nil {
		r.logger.Warn("skipping tick, sampling failed", zap.Error(err))
		return
	}
	r.agg.Tick(samples, r.clock.Now())
	r.logger.Debug("tick",
		zap.Int("processes", len(samples)),
		zap.Int("users", r.agg.Tracked()))
}
