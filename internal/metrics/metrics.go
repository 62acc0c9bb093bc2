// Package metrics exposes Prometheus instrumentation for the scheduler
// service. Registration is explicit so the short-lived CLI subcommands never
// pay for it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReconcilePassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crewsched",
		Name:      "reconcile_passes_total",
		Help:      "Reconciliation passes run against the schedule store.",
	})

	ReconcileChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewsched",
		Name:      "reconcile_changes_total",
		Help:      "Job set changes applied by reconciliation, by kind.",
	}, []string{"kind"})

	JobsScheduled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "crewsched",
		Name:      "jobs_scheduled",
		Help:      "Schedule entries currently armed in the engine.",
	})

	FiringsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewsched",
		Name:      "firings_total",
		Help:      "Job firings, by outcome (ok, failed, skipped, dropped).",
	}, []string{"outcome"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crewsched",
		Name:      "run_duration_seconds",
		Help:      "Duration of one job execution.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
	})
)

func Register() {
	prometheus.MustRegister(
		ReconcilePassesTotal,
		ReconcileChangesTotal,
		JobsScheduled,
		FiringsTotal,
		RunDuration,
	)
}

// NewServer returns an HTTP server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
