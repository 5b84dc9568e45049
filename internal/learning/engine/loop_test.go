package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/strideworks/trainalytics/internal/config"
	"github.com/strideworks/trainalytics/internal/learning/ensemble"
	"github.com/strideworks/trainalytics/internal/learning/trend"
)

// dailySessions builds one session per day with the given distances,
// durations derived from a steady 6 min/km effort.
func dailySessions(distances []float64) []TrainingData {
	base := time.Date(2025, 5, 1, 6, 30, 0, 0, time.UTC)
	sessions := make([]TrainingData, len(distances))
	for i, d := range distances {
		sessions[i] = TrainingData{
			ID:          "s" + string(rune('a'+i)),
			Timestamp:   base.AddDate(0, 0, i),
			DistanceKM:  d,
			DurationMin: d * 6,
			ElevationM:  50,
		}
	}
	return sessions
}

func rampDistances(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + 0.5*float64(i)
	}
	return out
}

func newTestController(t *testing.T, cfg config.Config) *Controller {
	t.Helper()
	return NewController(cfg, zaptest.NewLogger(t).Sugar())
}

func TestRunLearningLoop(t *testing.T) {
	t.Run("FullPipeline", func(t *testing.T) {
		ctrl := newTestController(t, config.Default())
		result, err := ctrl.RunLearningLoop(dailySessions(rampDistances(20)), TargetDistance)
		require.NoError(t, err)

		assert.Equal(t, string(ensemble.StrategyWeightedAverage), result.Prediction.Method)
		assert.False(t, math.IsInf(result.Prediction.Uncertainty, 1))
		assert.GreaterOrEqual(t, len(result.State.Members), 2)

		assert.Equal(t, trend.Increasing, result.State.Trend.Direction)
		assert.Less(t, result.State.Trend.PValue, 0.05)
		assert.InDelta(t, 0.5, result.State.Trend.Slope, 1e-6)

		require.NotNil(t, result.State.RegressionModel)
		assert.Equal(t, 20, result.State.RegressionModel.SampleCount)
		require.NotNil(t, result.State.BayesianModel)
		assert.Equal(t, 20, result.State.BayesianModel.ObservationCount())

		assert.NotEmpty(t, result.Insights)
		assert.NotEmpty(t, result.Recommendations)
	})

	t.Run("Deterministic", func(t *testing.T) {
		sessions := dailySessions(rampDistances(20))
		ctrl := newTestController(t, config.Default())

		first, err := ctrl.RunLearningLoop(sessions, TargetDistance)
		require.NoError(t, err)
		second, err := ctrl.RunLearningLoop(sessions, TargetDistance)
		require.NoError(t, err)

		assert.Equal(t, first.Prediction.Value, second.Prediction.Value)
		assert.Equal(t, first.Prediction.Uncertainty, second.Prediction.Uncertainty)
		assert.Equal(t, first.State.Trend, second.State.Trend)
		assert.Equal(t, first.State.RegressionModel.Coefficients, second.State.RegressionModel.Coefficients)
	})

	t.Run("OutliersRemovedBeforeTraining", func(t *testing.T) {
		sessions := dailySessions([]float64{10, 10.4, 9.8, 10.2, 150, 10.1, 9.9, 10.3})
		ctrl := newTestController(t, config.Default())

		result, err := ctrl.RunLearningLoop(sessions, TargetDistance)
		require.NoError(t, err)

		assert.Equal(t, []int{4}, result.State.DataQuality.OutlierIndices)
		assert.Equal(t, 7, result.State.RegressionModel.SampleCount)
		assert.Contains(t, result.Insights[0], "removing 1 outliers from 8 observations")

		// 1 of 8 sessions exceeds the 10% warning threshold.
		joined := ""
		for _, r := range result.Recommendations {
			joined += r + "\n"
		}
		assert.Contains(t, joined, "12.5% of sessions were flagged as outliers")
	})

	t.Run("InsufficientCleanData", func(t *testing.T) {
		sessions := dailySessions([]float64{10, 10.5, 11, 10.2})
		ctrl := newTestController(t, config.Default())

		result, err := ctrl.RunLearningLoop(sessions, TargetDistance)
		require.NoError(t, err)

		assert.Equal(t, MethodInsufficientData, result.Prediction.Method)
		assert.True(t, math.IsInf(result.Prediction.Uncertainty, 1))
		assert.Zero(t, result.Prediction.Confidence)
		require.Len(t, result.Recommendations, 1)
		assert.Contains(t, result.Recommendations[0], "At least 5 clean training sessions are required")
		assert.Empty(t, result.Insights)
		assert.Equal(t, trend.Stable, result.State.Trend.Direction)
	})

	t.Run("MinimumViableHistory", func(t *testing.T) {
		// Five clean points sit exactly at the floor; the singular normal
		// equations are rescued by the ridge retry.
		sessions := dailySessions([]float64{10, 10.5, 11, 10.2, 10.8})
		ctrl := newTestController(t, config.Default())

		result, err := ctrl.RunLearningLoop(sessions, TargetDistance)
		require.NoError(t, err)

		assert.NotEqual(t, MethodInsufficientData, result.Prediction.Method)
		assert.Equal(t, string(ensemble.StrategyWeightedAverage), result.Prediction.Method)
		require.NotNil(t, result.State.RegressionModel)
		assert.Equal(t, 5, result.State.RegressionModel.SampleCount)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		ctrl := newTestController(t, config.Default())
		result, err := ctrl.RunLearningLoop(nil, TargetDistance)
		require.NoError(t, err)
		assert.Equal(t, MethodInsufficientData, result.Prediction.Method)
	})

	t.Run("AdaptiveStrategy", func(t *testing.T) {
		cfg := config.Default()
		cfg.Ensemble.Strategy = string(ensemble.StrategyAdaptive)
		ctrl := newTestController(t, cfg)

		result, err := ctrl.RunLearningLoop(dailySessions(rampDistances(20)), TargetDistance)
		require.NoError(t, err)
		assert.Equal(t, string(ensemble.StrategyAdaptive), result.Prediction.Method)
	})
}

func TestRunWithOptions(t *testing.T) {
	sessions := dailySessions(rampDistances(20))

	t.Run("DisableBayesian", func(t *testing.T) {
		ctrl := newTestController(t, config.Default())
		result, err := ctrl.RunWithOptions(sessions, TargetDistance, Options{DisableBayesian: true})
		require.NoError(t, err)

		assert.Nil(t, result.State.BayesianModel)
		assert.Zero(t, result.State.Performance.BayesianConfidence)
		for _, m := range result.State.Members {
			assert.NotEqual(t, ensemble.TypeBayesian, m.Type)
		}
	})

	t.Run("DisableTimeSeries", func(t *testing.T) {
		ctrl := newTestController(t, config.Default())
		result, err := ctrl.RunWithOptions(sessions, TargetDistance, Options{DisableTimeSeries: true})
		require.NoError(t, err)

		require.Len(t, result.State.Members, 2)
		names := []string{result.State.Members[0].Name, result.State.Members[1].Name}
		assert.Contains(t, names, "time_weighted_regression")
		assert.Contains(t, names, "bayesian_linear")
	})
}

func TestRemoveIndices(t *testing.T) {
	sessions := dailySessions([]float64{1, 2, 3, 4, 5})

	kept := removeIndices(sessions, []int{1, 3})
	require.Len(t, kept, 3)
	assert.Equal(t, 1.0, kept[0].DistanceKM)
	assert.Equal(t, 3.0, kept[1].DistanceKM)
	assert.Equal(t, 5.0, kept[2].DistanceKM)

	untouched := removeIndices(sessions, nil)
	assert.Equal(t, sessions, untouched)
	untouched[0].DistanceKM = 99
	assert.Equal(t, 1.0, sessions[0].DistanceKM, "copy must not alias the input")
}
