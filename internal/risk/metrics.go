package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "risk_analysis_duration_seconds",
		Help:    "Time to compute a full risk analysis",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	analysisDispositions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_analysis_dispositions_total",
		Help: "Suggested dispositions produced by risk analyses",
	}, []string{"disposition"})

	analysisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_analysis_failures_total",
		Help: "Risk analyses aborted, by reason",
	}, []string{"reason"})

	degradedComponents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_analysis_degraded_components_total",
		Help: "Analysis sub-components that fell back to defaults",
	}, []string{"component"})

	adminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_admin_actions_total",
		Help: "Admin actions applied, by action and outcome",
	}, []string{"action", "outcome"})
)
