package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/strideworks/trainalytics/internal/learning/bayes"
	"github.com/strideworks/trainalytics/internal/learning/trend"
)

// Narration thresholds.
const (
	outlierPctWarn       = 10.0
	uncertaintyVsValue   = 0.30
	r2ExcellentThreshold = 0.7
	r2GoodThreshold      = 0.5
	topCoefficients      = 3
)

// recommendations derives actionable guidance from the run's findings.
func (c *Controller) recommendations(state *LearningState, drift bayes.Drift) []string {
	recs := make([]string, 0, 4)

	switch state.Trend.Direction {
	case trend.Increasing:
		recs = append(recs, fmt.Sprintf(
			"Training load shows a statistically significant rising trend (p=%.3f); schedule recovery capacity before increasing volume further.",
			state.Trend.PValue))
	case trend.Decreasing:
		recs = append(recs, fmt.Sprintf(
			"Training load shows a statistically significant declining trend (p=%.3f); consider whether the reduction is intentional.",
			state.Trend.PValue))
	}

	if state.DataQuality.OutlierPercentage > outlierPctWarn {
		recs = append(recs, fmt.Sprintf(
			"%.1f%% of sessions were flagged as outliers; review recent entries for logging errors.",
			state.DataQuality.OutlierPercentage))
	}

	p := state.Prediction
	if !math.IsInf(p.Uncertainty, 1) && p.Value != 0 &&
		p.Uncertainty > uncertaintyVsValue*math.Abs(p.Value) {
		recs = append(recs, fmt.Sprintf(
			"Forecast uncertainty (±%.2f) exceeds 30%% of the predicted value %.2f; treat the forecast as indicative only.",
			p.Uncertainty, p.Value))
	}

	if drift.HasDrift {
		recs = append(recs, "Model calibration drift detected: "+drift.Recommendation)
	}

	return recs
}

// insights summarizes what the models learned in human-readable form.
func (c *Controller) insights(state *LearningState) []string {
	out := make([]string, 0, 6)

	removed := len(state.DataQuality.OutlierIndices)
	out = append(out, fmt.Sprintf(
		"Trained on %d sessions after removing %d outliers from %d observations.",
		state.DataQuality.TotalPoints-removed, removed, state.DataQuality.TotalPoints))

	if m := state.RegressionModel; m != nil {
		out = append(out, fmt.Sprintf(
			"Regression fit quality is %s (R²=%.2f, MAE=%.2f).",
			r2Label(m.R2Score), m.R2Score, m.MAE))
		if top := topFeatures(m.Coefficients, topCoefficients); top != "" {
			out = append(out, "Most influential features: "+top+".")
		}
	}

	if state.BayesianModel != nil {
		out = append(out, fmt.Sprintf(
			"Bayesian model confidence is %.2f after %d observations.",
			state.Performance.BayesianConfidence, state.BayesianModel.ObservationCount()))
	}

	if state.Trend.PValue < 0.05 {
		out = append(out, fmt.Sprintf(
			"Trend is statistically significant (%s, p=%.3f, Sen's slope %.3f/day).",
			state.Trend.Direction, state.Trend.PValue, state.Trend.Slope))
	} else {
		out = append(out, fmt.Sprintf(
			"No statistically significant trend (p=%.3f).", state.Trend.PValue))
	}

	return out
}

func r2Label(r2 float64) string {
	switch {
	case r2 >= r2ExcellentThreshold:
		return "excellent"
	case r2 >= r2GoodThreshold:
		return "good"
	default:
		return "fair"
	}
}

// topFeatures formats the k largest coefficients by absolute magnitude with
// their feature names. Coefficients beyond the named feature set (polynomial
// expansions) are labeled by index.
func topFeatures(coefficients []float64, k int) string {
	type ranked struct {
		name  string
		value float64
	}
	names := FeatureNames()
	all := make([]ranked, len(coefficients))
	for i, cv := range coefficients {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(names) {
			name = names[i]
		}
		all[i] = ranked{name: name, value: cv}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return math.Abs(all[i].value) > math.Abs(all[j].value)
	})
	if len(all) > k {
		all = all[:k]
	}

	s := ""
	for i, r := range all {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s (%.2f)", r.name, r.value)
	}
	return s
}
