//go:build linux

package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ja7ad/userstat/pkg/exporter"
	"github.com/ja7ad/userstat/pkg/logutil"
	"github.com/ja7ad/userstat/pkg/system/proc"
)

type opts struct {
	interval           time.Duration
	gracePeriod        time.Duration
	cpuThreshold       float64
	port               int
	excludeSystemUsers bool
	excludeUsers       []string
	totalsExportedOnly bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "userstat",
		Short: "Per-user CPU and memory exporter for Prometheus",
		Long: `userstat periodically samples the process table, attributes CPU and
resident memory to the owning user, and serves the aggregated values
on a Prometheus scrape endpoint:

  cpu_total_usage                 total CPU usage (%)
  cpu_user_usage{user="..."}      per-user CPU usage (%)
  memory_total_usage              total resident memory (bytes)
  memory_user_usage{user="..."}   per-user resident memory (bytes)

A user whose processes have all exited keeps its last known values for
the grace period, then its series are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}

	root.Flags().DurationVarP(&o.interval, "interval", "i", envInterval(), "sampling interval")
	root.Flags().DurationVar(&o.gracePeriod, "grace-period", exporter.DefaultGracePeriod,
		"how long to keep exporting a user after its last process exits")
	root.Flags().Float64Var(&o.cpuThreshold, "cpu-threshold", exporter.DefaultCPUThreshold,
		"minimum CPU percentage for a user to be exported")
	root.Flags().IntVarP(&o.port, "port", "p", exporter.DefaultPort, "metrics listen port")
	root.Flags().BoolVar(&o.excludeSystemUsers, "exclude-system-users", false,
		"exclude system users (uid < 1000) from the per-user series")
	root.Flags().StringSliceVar(&o.excludeUsers, "exclude-users", nil,
		"usernames to exclude from the per-user series")
	root.Flags().BoolVar(&o.totalsExportedOnly, "totals-exported-only", false,
		"restrict the total gauges to exported users instead of all tracked users")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// envInterval keeps compatibility with the METRIC_SCRAPE_INTERVAL
// environment variable (whole seconds) as the flag default.
func envInterval() time.Duration {
	if v, _ := strconv.Atoi(os.Getenv("METRIC_SCRAPE_INTERVAL")); v > 0 {
		return time.Duration(v) * time.Second
	}
	return exporter.DefaultInterval
}

func run(cmd *cobra.Command, o opts) error {
	logutil.InitLogger()
	logger := logutil.GetLogger()
	defer func() {
		_ = logger.Sync()
	}()

	cfg := exporter.Config{
		Interval:           o.interval,
		GracePeriod:        o.gracePeriod,
		CPUThreshold:       o.cpuThreshold,
		Port:               o.port,
		ExcludeSystemUsers: o.excludeSystemUsers,
		ExcludeUsers:       o.excludeUsers,
		TotalsExportedOnly: o.totalsExportedOnly,
	}

	// Config problems are fatal before the listener ever binds.
	agg, err := exporter.NewAggregator(cfg)
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	lister, err := proc.NewLister("")
	if err != nil {
		logger.Error("process table unavailable", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("userstat exporter starting",
		zap.Int("port", cfg.Port),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("grace_period", cfg.GracePeriod),
		zap.Float64("cpu_threshold", cfg.CPUThreshold),
		zap.Bool("exclude_system_users", cfg.ExcludeSystemUsers),
		zap.Strings("exclude_users", cfg.ExcludeUsers))

	go exporter.NewRunner(lister, agg, cfg.Interval).Run(ctx)

	if err := exporter.NewServer(cfg, agg).Run(ctx); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
		return err
	}
	logger.Info("userstat exporter stopped")
	return nil
}
