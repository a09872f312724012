// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Wallets processed per run by status
//   - Reconciliation failures by cohort and root cause
//   - Per-cohort pass rates
//   - Run duration
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus metrics for the reconciler.
type Metrics struct {
	WalletsProcessed *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	PassRate         *prometheus.GaugeVec
	RunDuration      prometheus.Histogram
	EventsFetched    prometheus.Counter
	DatasetVersion   prometheus.Gauge

	log *slog.Logger
}

// New creates and registers all Prometheus metrics.
func New(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		log: logger,

		WalletsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polypnl",
			Name:      "wallets_processed_total",
			Help:      "Wallets processed by reconciliation runs, by status",
		}, []string{"status"}),

		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polypnl",
			Name:      "reconciliation_failures_total",
			Help:      "Failed wallets by cohort and classified root cause",
		}, []string{"cohort", "root_cause"}),

		PassRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "polypnl",
			Name:      "pass_rate",
			Help:      "Pass rate of the last reconciliation run per cohort",
		}, []string{"cohort"}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polypnl",
			Name:      "run_duration_seconds",
			Help:      "Wall time of full reconciliation runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polypnl",
			Name:      "events_fetched_total",
			Help:      "Raw event rows fetched from the event log",
		}),

		DatasetVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polypnl",
			Name:      "dataset_version",
			Help:      "Validation dataset version of the last run",
		}),
	}

	prometheus.MustRegister(
		m.WalletsProcessed,
		m.Failures,
		m.PassRate,
		m.RunDuration,
		m.EventsFetched,
		m.DatasetVersion,
	)

	return m
}

// NewNoop creates unregistered metrics suitable for testing.
func NewNoop() *Metrics {
	return &Metrics{
		log: slog.Default(),
		WalletsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_wallets_processed",
		}, []string{"status"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_failures",
		}, []string{"cohort", "root_cause"}),
		PassRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_pass_rate",
		}, []string{"cohort"}),
		RunDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_run_duration"}),
		EventsFetched:  prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_fetched"}),
		DatasetVersion: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_dataset_version"}),
	}
}

// ObserveRun records the aggregates of one finished run.
func (m *Metrics) ObserveRun(duration time.Duration, datasetVersion int) {
	m.RunDuration.Observe(duration.Seconds())
	m.DatasetVersion.Set(float64(datasetVersion))
}

// Serve starts the Prometheus HTTP server on the given port. The handler
// also answers /healthz for liveness probes.
func (m *Metrics) Serve(port int, path string) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.log.Info("starting metrics server", "addr", addr, "path", path)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.log.Error("metrics server error", "error", err)
		}
	}()
}
