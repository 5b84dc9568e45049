// Package engine orchestrates the statistical learning pipeline: cleaning,
// feature engineering, trend analysis, model fitting, ensembling and
// narration over one athlete's training history.
package engine

import (
	"time"

	"github.com/strideworks/trainalytics/internal/learning/bayes"
	"github.com/strideworks/trainalytics/internal/learning/ensemble"
	"github.com/strideworks/trainalytics/internal/learning/regression"
	"github.com/strideworks/trainalytics/internal/learning/stats"
	"github.com/strideworks/trainalytics/internal/learning/trend"
)

// TargetVariable selects what the pipeline predicts.
type TargetVariable string

const (
	TargetDistance  TargetVariable = "distance"
	TargetFatigue   TargetVariable = "fatigue"
	TargetReadiness TargetVariable = "readiness"
)

// MethodInsufficientData is the sentinel method reported when fewer than the
// configured minimum of clean observations remain after outlier removal.
const MethodInsufficientData = "insufficient_data"

// TrainingData is one training session as supplied by the caller. The engine
// never mutates it. Optional wellness fields are nil when not recorded.
type TrainingData struct {
	ID              string     `json:"id"`
	Timestamp       time.Time  `json:"timestamp"`
	DistanceKM      float64    `json:"distance_km"`
	DurationMin     float64    `json:"duration_min"`
	ElevationM      float64    `json:"elevation_m"`
	AvgHeartRate    *float64   `json:"avg_heart_rate,omitempty"`
	PerceivedEffort *float64   `json:"perceived_effort,omitempty"`
	SleepQuality    *float64   `json:"sleep_quality,omitempty"`
	Readiness       *float64   `json:"readiness,omitempty"`
}

// PerformanceMetrics is the rollup of model quality for one invocation.
type PerformanceMetrics struct {
	R2Score            float64 `json:"r2_score"`
	MSE                float64 `json:"mse"`
	MAE                float64 `json:"mae"`
	BayesianConfidence float64 `json:"bayesian_confidence"`
	EnsembleDiversity  float64 `json:"ensemble_diversity"`
}

// LearningState aggregates everything one learning-loop invocation produced.
// It is built fresh per run and never persisted by the engine.
type LearningState struct {
	Target          TargetVariable      `json:"target"`
	DataQuality     stats.Report        `json:"data_quality"`
	Trend           trend.Analysis      `json:"trend"`
	RegressionModel *regression.Model   `json:"regression_model,omitempty"`
	BayesianModel   *bayes.Model        `json:"-"`
	Members         []ensemble.Member   `json:"ensemble_members"`
	Prediction      ensemble.Prediction `json:"prediction"`
	Performance     PerformanceMetrics  `json:"performance"`
	CreatedAt       time.Time           `json:"created_at"`
}

// LoopResult is the caller-facing artifact of one learning-loop run.
type LoopResult struct {
	State           LearningState       `json:"state"`
	Prediction      ensemble.Prediction `json:"prediction"`
	Recommendations []string            `json:"recommendations"`
	Insights        []string            `json:"insights"`
}

// Options toggle optional pipeline stages for quick-simulation callers.
type Options struct {
	// DisableBayesian drops the Bayesian member and skips drift checks.
	DisableBayesian bool
	// DisableTimeSeries drops the smoothing and moving-average members
	// regardless of their self-reported confidence.
	DisableTimeSeries bool
}
