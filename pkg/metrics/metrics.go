// Package metrics exposes prometheus instrumentation for learning-loop runs.
// Exposition is left to callers; this package only registers collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LearningRuns counts learning-loop invocations by outcome
// (ok, insufficient_data, error).
var LearningRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trainalytics_learning_runs_total",
		Help: "Total number of learning loop invocations by outcome",
	},
	[]string{"outcome"},
)

// LoopDuration records the wall-clock duration of learning-loop runs.
var LoopDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "trainalytics_learning_loop_duration_seconds",
		Help:    "Duration in seconds of a full learning loop run",
		Buckets: prometheus.DefBuckets,
	},
)

// OutlierRatio tracks the outlier percentage of the most recent run.
var OutlierRatio = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "trainalytics_outlier_ratio_percent",
		Help: "Percentage of observations flagged as outliers in the last run",
	},
)

func init() {
	prometheus.MustRegister(LearningRuns, LoopDuration, OutlierRatio)
}
