package interp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/report"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "interp_runs_total",
		Help:      "Flow executions by outcome.",
	}, []string{"outcome"})

	blocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "interp_blocks_total",
		Help:      "Block executions by type and status.",
	}, []string{"type", "status"})

	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weblens",
		Name:      "interp_resolutions_total",
		Help:      "Element resolutions by confidence tier and outcome.",
	}, []string{"confidence", "outcome"})
)

func recordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

func recordBlock(t flow.BlockType, status report.BlockStatus) {
	blocksTotal.WithLabelValues(string(t), string(status)).Inc()
}

func recordResolution(confidence string, found bool) {
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	resolutionsTotal.WithLabelValues(confidence, outcome).Inc()
}
