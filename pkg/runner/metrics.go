package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "weblens",
		Name:      "runner_runs_active",
		Help:      "Runs currently executing.",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "runner_events_total",
		Help:      "Progress events by delivery outcome.",
	}, []string{"outcome"})

	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "runner_history_evictions_total",
		Help:      "Completed runs evicted from the bounded history.",
	})

	suitesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "runner_suites_total",
		Help:      "Scenario suites by outcome.",
	}, []string{"outcome"})
)

func recordRunStarted()  { runsActive.Inc() }
func recordRunFinished() { runsActive.Dec() }

func recordEvent()        { eventsTotal.WithLabelValues("queued").Inc() }
func recordDroppedEvent() { eventsTotal.WithLabelValues("dropped").Inc() }

func recordEviction() { evictionsTotal.Inc() }

func recordSuite(passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	suitesTotal.WithLabelValues(outcome).Inc()
}
