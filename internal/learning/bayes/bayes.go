// Package bayes implements conjugate Bayesian linear regression with
// sequential closed-form posterior updates. Updates never mutate existing
// state; every operation returns a new Model value.
package bayes

import (
	"fmt"
	"math"
)

const (
	// priorVariance is the diagonal of the isotropic Gaussian prior over
	// the coefficient vector (intercept included).
	priorVariance = 100.0

	// noiseVariance is the fixed observation noise of the likelihood. A
	// known noise keeps every update a rank-one Sherman-Morrison step.
	noiseVariance = 1.0

	// credibleZ is the two-sided 95% normal quantile.
	credibleZ = 1.96
)

// Model is the posterior state over linear coefficients. The first entry of
// the mean vector is the intercept. The zero value is not usable; construct
// with New.
type Model struct {
	mean       []float64
	covariance [][]float64
	count      int
}

// Prediction is the posterior predictive at one feature vector.
type Prediction struct {
	Mean             float64          `json:"mean"`
	Variance         float64          `json:"variance"`
	CredibleInterval CredibleInterval `json:"credible_interval"`
}

// CredibleInterval is a central 95% posterior interval.
type CredibleInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Drift is the outcome of a calibration check against recent residuals.
type Drift struct {
	HasDrift       bool   `json:"has_drift"`
	Recommendation string `json:"recommendation"`
}

// New creates a fresh posterior over featureDim coefficients plus intercept,
// centered at zero with a broad isotropic prior.
func New(featureDim int) *Model {
	dim := featureDim + 1
	mean := make([]float64, dim)
	cov := make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
		cov[i][i] = priorVariance
	}
	return &Model{mean: mean, covariance: cov}
}

// ObservationCount reports how many observations have been folded into the
// posterior.
func (m *Model) ObservationCount() int {
	return m.count
}

// Update folds one observation into the posterior and returns the new state.
// Weight scales the observation's influence; weights <= 0 count as 1.
func (m *Model) Update(features []float64, target, weight float64) *Model {
	dim := len(m.mean)
	x := augment(features, dim)
	if weight <= 0 {
		weight = 1
	}

	// Kalman-form rank-one update: k = Sx / (sigma^2/w + x'Sx).
	sx := make([]float64, dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			sx[i] += m.covariance[i][j] * x[j]
		}
	}
	var xsx float64
	for i := 0; i < dim; i++ {
		xsx += x[i] * sx[i]
	}
	denom := noiseVariance/weight + xsx

	var predicted float64
	for i := 0; i < dim; i++ {
		predicted += x[i] * m.mean[i]
	}
	residual := target - predicted

	next := &Model{
		mean:       make([]float64, dim),
		covariance: make([][]float64, dim),
		count:      m.count + 1,
	}
	for i := 0; i < dim; i++ {
		gain := sx[i] / denom
		next.mean[i] = m.mean[i] + gain*residual
		next.covariance[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			next.covariance[i][j] = m.covariance[i][j] - gain*sx[j]
		}
	}
	return next
}

// Predict returns the posterior predictive mean, variance and 95% credible
// interval at the given feature vector.
func (m *Model) Predict(features []float64) Prediction {
	dim := len(m.mean)
	x := augment(features, dim)

	var mean float64
	for i := 0; i < dim; i++ {
		mean += x[i] * m.mean[i]
	}

	variance := noiseVariance
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			variance += x[i] * m.covariance[i][j] * x[j]
		}
	}

	spread := credibleZ * math.Sqrt(variance)
	return Prediction{
		Mean:     mean,
		Variance: variance,
		CredibleInterval: CredibleInterval{
			Lower: mean - spread,
			Upper: mean + spread,
		},
	}
}

// Confidence scores the posterior in [0,1], rising with observation count and
// falling with the remaining posterior uncertainty.
func (m *Model) Confidence() float64 {
	if m.count == 0 {
		return 0
	}
	countFactor := float64(m.count) / (float64(m.count) + 10)

	var meanVariance float64
	for i := range m.covariance {
		meanVariance += m.covariance[i][i]
	}
	meanVariance /= float64(len(m.covariance))
	varianceFactor := 1 / (1 + meanVariance)

	c := countFactor * varianceFactor
	if c > 1 {
		c = 1
	}
	return c
}

// DetectDrift checks recent prediction residuals against the posterior
// predictive scale. With no residual history it cannot detect anything and
// says so rather than guessing.
func (m *Model) DetectDrift(recentResiduals []float64) Drift {
	if len(recentResiduals) == 0 {
		return Drift{
			HasDrift:       false,
			Recommendation: "no residual history available; drift detection inactive until residuals are supplied",
		}
	}

	var meanAbs float64
	for _, r := range recentResiduals {
		meanAbs += math.Abs(r)
	}
	meanAbs /= float64(len(recentResiduals))

	var meanVariance float64
	for i := range m.covariance {
		meanVariance += m.covariance[i][i]
	}
	meanVariance /= float64(len(m.covariance))
	scale := math.Sqrt(noiseVariance + meanVariance)

	if meanAbs > 2*scale {
		return Drift{
			HasDrift: true,
			Recommendation: fmt.Sprintf(
				"mean absolute residual %.2f exceeds 2x predictive scale %.2f; retrain on recent data", meanAbs, scale),
		}
	}
	return Drift{
		HasDrift:       false,
		Recommendation: "model calibration within expected range",
	}
}

// augment prepends the intercept term and pads or truncates features to the
// posterior dimension.
func augment(features []float64, dim int) []float64 {
	x := make([]float64, dim)
	x[0] = 1
	for i := 0; i < dim-1 && i < len(features); i++ {
		x[i+1] = features[i]
	}
	return x
}
