// Package forecast produces short-horizon forecasts from scalar series using
// Holt-style exponential smoothing and an adaptively sized moving average.
package forecast

import (
	"math"

	"github.com/strideworks/trainalytics/internal/learning/stats"
)

// Method names reported in Result.
const (
	MethodExponentialSmoothing = "exponential_smoothing"
	MethodAdaptiveMovingAvg    = "adaptive_moving_average"
)

// intervalZ is the two-sided 95% normal quantile used for forecast bands.
const intervalZ = 1.96

// minSmoothingPoints is the shortest series exponential smoothing accepts.
const minSmoothingPoints = 3

// candidateWindows are the moving-average sizes tried during backtesting.
var candidateWindows = []int{3, 5, 7, 10, 14}

// Result is a self-scoring forecast. Confidence of 0 with empty predictions
// means the series was too short to model.
type Result struct {
	Predictions []float64 `json:"predictions"`
	LowerBound  []float64 `json:"lower_bound"`
	UpperBound  []float64 `json:"upper_bound"`
	Confidence  float64   `json:"confidence"`
	Method      string    `json:"method"`
}

// TripleExponentialSmoothing forecasts horizon steps ahead with Holt-style
// level and trend smoothing. Alpha smooths the level, beta the trend.
func TripleExponentialSmoothing(series []float64, alpha, beta float64, horizon int) Result {
	result := Result{Method: MethodExponentialSmoothing}
	n := len(series)
	if n < minSmoothingPoints || horizon <= 0 {
		return result
	}

	level := series[0]
	trend := (series[n-1] - series[0]) / float64(n)

	var ssRes float64
	for t := 1; t < n; t++ {
		fitted := level + trend
		err := series[t] - fitted
		ssRes += err * err

		prevLevel := level
		level = alpha*series[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	mse := ssRes / float64(n-1)
	sigma := math.Sqrt(mse)

	result.Predictions = make([]float64, horizon)
	result.LowerBound = make([]float64, horizon)
	result.UpperBound = make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		point := level + float64(h)*trend
		result.Predictions[h-1] = point
		result.LowerBound[h-1] = point - intervalZ*sigma
		result.UpperBound[h-1] = point + intervalZ*sigma
	}

	if variance := stats.Variance(series); variance > 0 {
		result.Confidence = math.Max(0, 1-mse/variance)
	}
	return result
}

// AdaptiveMovingAverage grid-searches the candidate window sizes with a
// one-step-ahead sliding backtest, then forecasts a flat repetition of the
// best window's trailing mean.
func AdaptiveMovingAverage(series []float64, horizon int) Result {
	result := Result{Method: MethodAdaptiveMovingAvg}
	n := len(series)
	if horizon <= 0 {
		return result
	}

	bestWindow := 0
	bestMSE := math.Inf(1)
	for _, w := range candidateWindows {
		if w > n/2 {
			continue
		}
		var sse float64
		count := 0
		for t := w; t < n; t++ {
			pred := stats.Mean(series[t-w : t])
			err := series[t] - pred
			sse += err * err
			count++
		}
		if count == 0 {
			continue
		}
		if mse := sse / float64(count); mse < bestMSE {
			bestMSE = mse
			bestWindow = w
		}
	}
	if bestWindow == 0 {
		return result
	}

	point := stats.Mean(series[n-bestWindow:])
	spread := intervalZ * math.Sqrt(bestMSE)

	result.Predictions = make([]float64, horizon)
	result.LowerBound = make([]float64, horizon)
	result.UpperBound = make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		result.Predictions[h] = point
		result.LowerBound[h] = point - spread
		result.UpperBound[h] = point + spread
	}

	if variance := stats.Variance(series); variance > 0 {
		result.Confidence = math.Max(0, 1-bestMSE/variance)
	}
	return result
}
