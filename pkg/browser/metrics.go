package browser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "browser_sessions_created_total",
		Help:      "Number of browser sessions opened.",
	})
	metricSessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "browser_sessions_closed_total",
		Help:      "Number of browser sessions closed.",
	})
	metricActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "browser_actions_total",
		Help:      "Browser actions performed, labeled by action and outcome.",
	}, []string{"action", "outcome"})
	metricSnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "weblens",
		Name:      "browser_snapshot_seconds",
		Help:      "Time spent building candidate snapshots.",
		Buckets:   prometheus.DefBuckets,
	})
)

func recordSessionCreated() { metricSessionsCreated.Inc() }
func recordSessionClosed()  { metricSessionsClosed.Inc() }

// RecordAction counts a driver action by name and outcome for dashboards.
func RecordAction(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metricActions.WithLabelValues(action, outcome).Inc()
}

// ObserveSnapshot records how long a candidate snapshot took to build.
func ObserveSnapshot(seconds float64) {
	metricSnapshotDuration.Observe(seconds)
}
