package engine

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/strideworks/trainalytics/internal/learning/regression"
)

// Defaults substituted for unrecorded wellness fields.
const (
	defaultHeartRate = 150.0
	defaultEffort    = 5.0
	defaultSleep     = 7.0
	defaultReadiness = 75.0
)

// recencyHalfLifeDays controls the exponential decay of observation weights.
const recencyHalfLifeDays = 30.0

// rollingDistanceWindow is the number of trailing sessions (current included)
// averaged into the rolling-distance feature.
const rollingDistanceWindow = 3

// featureNames lists the engineered features in vector order.
var featureNames = []string{
	"distance_km",
	"duration_min",
	"elevation_m",
	"pace_kmh",
	"avg_heart_rate",
	"perceived_effort",
	"sleep_quality",
	"readiness",
	"day_of_week_sin",
	"day_of_week_cos",
	"rolling_3day_distance",
}

// FeatureNames returns the engineered feature names in vector order.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// FeatureEngineer derives fixed-width numeric feature vectors from training
// observations.
type FeatureEngineer struct {
	logger *zap.SugaredLogger
}

// NewFeatureEngineer creates a feature engineer. A nil logger disables
// logging.
func NewFeatureEngineer(logger *zap.SugaredLogger) *FeatureEngineer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FeatureEngineer{logger: logger}
}

// Engineer converts observations into regression data points, one per input
// in input order. The target is extracted per the requested variable and the
// recency weight decays with a 30-day half-life anchored at the most recent
// observation so repeated runs stay deterministic.
func (e *FeatureEngineer) Engineer(observations []TrainingData, target TargetVariable) []regression.DataPoint {
	if len(observations) == 0 {
		return nil
	}

	reference := observations[0].Timestamp
	for _, o := range observations {
		if o.Timestamp.After(reference) {
			reference = o.Timestamp
		}
	}

	points := make([]regression.DataPoint, len(observations))
	for i, obs := range observations {
		features := e.vector(observations, i)

		daysSince := reference.Sub(obs.Timestamp).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}

		ts := obs.Timestamp
		points[i] = regression.DataPoint{
			Features:  features,
			Target:    TargetValue(obs, target),
			Weight:    math.Exp(-daysSince / recencyHalfLifeDays),
			Timestamp: &ts,
		}
	}

	e.logger.Debugw("features engineered",
		"observations", len(observations),
		"features", len(featureNames),
		"target", target)

	return points
}

// vector builds the fixed-order feature vector for observations[i].
func (e *FeatureEngineer) vector(observations []TrainingData, i int) []float64 {
	obs := observations[i]

	pace := 0.0
	if obs.DurationMin > 0 {
		pace = obs.DistanceKM / (obs.DurationMin / 60)
	}

	dow := float64(dayOfWeek(obs.Timestamp))

	lo := i - (rollingDistanceWindow - 1)
	if lo < 0 {
		lo = 0
	}
	rolling := 0.0
	for j := lo; j <= i; j++ {
		rolling += observations[j].DistanceKM
	}
	rolling /= float64(i - lo + 1)

	return []float64{
		obs.DistanceKM,
		obs.DurationMin,
		obs.ElevationM,
		pace,
		orDefault(obs.AvgHeartRate, defaultHeartRate),
		orDefault(obs.PerceivedEffort, defaultEffort),
		orDefault(obs.SleepQuality, defaultSleep),
		orDefault(obs.Readiness, defaultReadiness),
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
		rolling,
	}
}

// TargetValue extracts the predicted quantity from one observation.
func TargetValue(obs TrainingData, target TargetVariable) float64 {
	switch target {
	case TargetFatigue:
		return orDefault(obs.PerceivedEffort, defaultEffort)
	case TargetReadiness:
		return orDefault(obs.Readiness, defaultReadiness)
	default:
		return obs.DistanceKM
	}
}

func dayOfWeek(t time.Time) int {
	return int(t.Weekday())
}

func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
