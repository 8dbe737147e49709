package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	downloadsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spawnctl",
			Subsystem: "fetch",
			Name:      "downloads_started_total",
			Help:      "Downloads handed to the coordinator.",
		},
	)
	downloadsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spawnctl",
			Subsystem: "fetch",
			Name:      "downloads_finished_total",
			Help:      "Downloads finished, by terminal state.",
		},
		[]string{"state"},
	)
	asyncErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spawnctl",
			Subsystem: "fetch",
			Name:      "async_errors_total",
			Help:      "Errors routed to the coordinator's report sink.",
		},
	)
	solveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spawnctl",
			Subsystem: "solver",
			Name:      "solve_duration_seconds",
			Help:      "Time spent resolving a selection set.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spawnctl",
			Subsystem: "launch",
			Name:      "launches_total",
			Help:      "Program launches, by mode.",
		},
		[]string{"mode"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(downloadsStarted, downloadsFinished, asyncErrors, solveDuration, launches)
	})
}

func RecordDownloadStarted() {
	RegisterMetrics()
	downloadsStarted.Inc()
}

func RecordDownloadFinished(state string) {
	RegisterMetrics()
	downloadsFinished.WithLabelValues(state).Inc()
}

func RecordAsyncError() {
	RegisterMetrics()
	asyncErrors.Inc()
}

func RecordSolve(duration time.Duration) {
	RegisterMetrics()
	solveDuration.Observe(duration.Seconds())
}

func RecordLaunch(mode string) {
	RegisterMetrics()
	launches.WithLabelValues(mode).Inc()
}

// ServeMetrics exposes the registry on addr for debugging long-running
// fetch sessions. The launcher works fine without the listener.
func ServeMetrics(addr string) error {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
