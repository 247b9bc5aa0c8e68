package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ja7ad/userstat/pkg/logutil"
)

var (
	cpuTotalDesc = prometheus.NewDesc(
		"cpu_total_usage", "Total CPU Usage (%)", nil, nil)
	cpuUserDesc = prometheus.NewDesc(
		"cpu_user_usage", "User CPU Usage (%)", []string{"user"}, nil)
	memTotalDesc = prometheus.NewDesc(
		"memory_total_usage", "Total Memory Usage (Bytes)", nil, nil)
	memUserDesc = prometheus.NewDesc(
		"memory_user_usage", "User Memory Usage (Bytes)", []string{"user"}, nil)
)

// snapshotCollector renders the aggregator state at scrape time.
// Pulling on demand means an expired user simply stops appearing in
// the exposition; there is no gauge-removal bookkeeping to get wrong.
type snapshotCollector struct {
	agg *Aggregator
}

func (c snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cpuTotalDesc
	ch <- cpuUserDesc
	ch <- memTotalDesc
	ch <- memUserDesc
}

func (c snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.agg.Export()

	ch <- prometheus.MustNewConstMetric(cpuTotalDesc, prometheus.GaugeValue, snap.TotalCPUPercent)
	ch <- prometheus.MustNewConstMetric(memTotalDesc, prometheus.GaugeValue, snap.TotalMemory.Float64())
	for _, u := range snap.Users {
		ch <- prometheus.MustNewConstMetric(cpuUserDesc, prometheus.GaugeValue, u.CPUPercent, u.User)
		ch <- prometheus.MustNewConstMetric(memUserDesc, prometheus.GaugeValue, u.Memory.Float64(), u.User)
	}
}

// NewHandler returns the /metrics handler backed by agg. The handler
// answers every scrape from the last completed tick; a malformed
// snapshot surfaces as HTTP 500 rather than partial output.
func NewHandler(agg *Aggregator) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(snapshotCollector{agg: agg})
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Server is the scrape endpoint.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(cfg Config, agg *Aggregator) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", NewHandler(agg))

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logutil.GetLogger(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully so an
// in-flight scrape can finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown", zap.Error(err))
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
