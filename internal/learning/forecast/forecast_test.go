package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripleExponentialSmoothing(t *testing.T) {
	t.Run("TooShortSeries", func(t *testing.T) {
		r := TripleExponentialSmoothing([]float64{1, 2}, 0.3, 0.1, 5)
		assert.Empty(t, r.Predictions)
		assert.Zero(t, r.Confidence)
		assert.Equal(t, MethodExponentialSmoothing, r.Method)
	})

	t.Run("LinearSeriesExtendsTrend", func(t *testing.T) {
		series := []float64{10, 12, 14, 16, 18, 20, 22, 24, 26, 28}
		r := TripleExponentialSmoothing(series, 0.3, 0.1, 3)
		require.Len(t, r.Predictions, 3)
		require.Len(t, r.LowerBound, 3)
		require.Len(t, r.UpperBound, 3)

		assert.Greater(t, r.Predictions[0], series[len(series)-2])
		assert.Greater(t, r.Predictions[1], r.Predictions[0])
		assert.Greater(t, r.Predictions[2], r.Predictions[1])
		assert.Greater(t, r.Confidence, 0.5, "a clean linear trend should fit well")

		for i := range r.Predictions {
			assert.Less(t, r.LowerBound[i], r.Predictions[i])
			assert.Greater(t, r.UpperBound[i], r.Predictions[i])
		}
	})

	t.Run("ZeroHorizon", func(t *testing.T) {
		r := TripleExponentialSmoothing([]float64{1, 2, 3, 4}, 0.3, 0.1, 0)
		assert.Empty(t, r.Predictions)
	})
}

func TestAdaptiveMovingAverage(t *testing.T) {
	t.Run("TooShortForAnyWindow", func(t *testing.T) {
		r := AdaptiveMovingAverage([]float64{1, 2, 3, 4, 5}, 3)
		assert.Empty(t, r.Predictions)
		assert.Zero(t, r.Confidence)
		assert.Equal(t, MethodAdaptiveMovingAvg, r.Method)
	})

	t.Run("FlatForecastFromBestWindow", func(t *testing.T) {
		// A slowly rising step series rewards a short window over the
		// global mean, so the backtest yields a usable confidence.
		series := []float64{10, 10, 10, 12, 12, 12, 14, 14, 14, 16, 16, 16}
		r := AdaptiveMovingAverage(series, 4)
		require.Len(t, r.Predictions, 4)

		for _, p := range r.Predictions[1:] {
			assert.Equal(t, r.Predictions[0], p, "moving-average forecasts are flat")
		}
		assert.InDelta(t, 16.0, r.Predictions[0], 1.0)
		assert.Greater(t, r.Confidence, 0.0)
		assert.Less(t, r.LowerBound[0], r.Predictions[0])
		assert.Greater(t, r.UpperBound[0], r.Predictions[0])
	})

	t.Run("LargeWindowsSkipped", func(t *testing.T) {
		// n=8 permits only the 3-wide window (5 > 8/2).
		series := []float64{5, 6, 5, 6, 5, 6, 5, 6}
		r := AdaptiveMovingAverage(series, 2)
		require.Len(t, r.Predictions, 2)
		assert.InDelta(t, (6.0+5.0+6.0)/3, r.Predictions[0], 1e-9, "trailing 3-value mean")
	})
}
