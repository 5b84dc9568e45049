// Package ensemble merges heterogeneous model predictions into a single
// forecast with a quantified uncertainty band.
package ensemble

import (
	"encoding/json"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/strideworks/trainalytics/internal/learning/stats"
)

// Strategy selects how member predictions are combined.
type Strategy string

const (
	StrategyWeightedAverage Strategy = "weighted_average"
	StrategyMedian          Strategy = "median"
	StrategyAdaptive        Strategy = "adaptive"
)

// MemberType labels the family a member model belongs to.
type MemberType string

const (
	TypeRegression MemberType = "regression"
	TypeTimeSeries MemberType = "time_series"
	TypeBayesian   MemberType = "bayesian"
	TypeCustom     MemberType = "custom"
)

// MethodInsufficientModels is the sentinel method reported when too few
// members are available to combine.
const MethodInsufficientModels = "insufficient_models"

// DefaultMinMembers is the smallest ensemble the combiner will accept.
const DefaultMinMembers = 2

const (
	intervalZ = 1.96

	// madScale converts a MAD into a normal-consistent spread estimate.
	madScale = 1.4826

	// errorEpsilon guards the adaptive weight and weight-update ratios
	// against division by zero on perfect members.
	errorEpsilon = 0.01
)

// Performance is a member's historical accuracy snapshot.
type Performance struct {
	MAE            float64 `json:"mae"`
	MSE            float64 `json:"mse"`
	R2             float64 `json:"r2"`
	RecentAccuracy float64 `json:"recent_accuracy"`
}

// Member is one model's contribution to the ensemble, rebuilt every run.
// Confidence is optional; when nil the member's R2 is used instead.
type Member struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        MemberType  `json:"type"`
	Weight      float64     `json:"weight"`
	Performance Performance `json:"performance"`
	Predictions []float64   `json:"predictions"`
	Confidence  *float64    `json:"confidence,omitempty"`
}

// Interval is the ensemble's uncertainty band.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contribution records one member's share of the combined value.
type Contribution struct {
	MemberID   string  `json:"member_id"`
	Name       string  `json:"name"`
	Prediction float64 `json:"prediction"`
	Weight     float64 `json:"weight"`
}

// Prediction is the externally visible forecast artifact. An Uncertainty of
// +Inf is the explicit no-usable-model signal.
type Prediction struct {
	Value         float64        `json:"value"`
	Confidence    float64        `json:"confidence"`
	Uncertainty   float64        `json:"uncertainty"`
	Interval      Interval       `json:"interval"`
	Contributions []Contribution `json:"model_contributions"`
	Method        string         `json:"method"`
}

// MarshalJSON renders non-finite uncertainty and interval bounds as null so
// that sentinel predictions survive JSON encoding.
func (p Prediction) MarshalJSON() ([]byte, error) {
	type interval struct {
		Lower *float64 `json:"lower"`
		Upper *float64 `json:"upper"`
	}
	return json.Marshal(struct {
		Value         float64        `json:"value"`
		Confidence    float64        `json:"confidence"`
		Uncertainty   *float64       `json:"uncertainty"`
		Interval      interval       `json:"interval"`
		Contributions []Contribution `json:"model_contributions"`
		Method        string         `json:"method"`
	}{
		Value:       p.Value,
		Confidence:  p.Confidence,
		Uncertainty: finiteOrNil(p.Uncertainty),
		Interval: interval{
			Lower: finiteOrNil(p.Interval.Lower),
			Upper: finiteOrNil(p.Interval.Upper),
		},
		Contributions: p.Contributions,
		Method:        p.Method,
	})
}

func finiteOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// Combiner merges member predictions under a configurable strategy.
type Combiner struct {
	logger     *zap.SugaredLogger
	minMembers int
}

// NewCombiner creates a combiner requiring at least minMembers usable
// members; values below 1 select the default. A nil logger disables logging.
func NewCombiner(logger *zap.SugaredLogger, minMembers int) *Combiner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if minMembers < 1 {
		minMembers = DefaultMinMembers
	}
	return &Combiner{logger: logger, minMembers: minMembers}
}

// InsufficientModels returns the sentinel emitted when no usable ensemble can
// be formed.
func InsufficientModels() Prediction {
	return Prediction{
		Value:       0,
		Confidence:  0,
		Uncertainty: math.Inf(1),
		Interval:    Interval{Lower: math.Inf(-1), Upper: math.Inf(1)},
		Method:      MethodInsufficientModels,
	}
}

// Combine merges the members' first-step predictions. recentErrors maps
// member IDs to their latest absolute prediction errors and is only consulted
// by the adaptive strategy.
func (c *Combiner) Combine(members []Member, strategy Strategy, recentErrors map[string][]float64) Prediction {
	usable := make([]Member, 0, len(members))
	for _, m := range members {
		if m.Weight > 0 && len(m.Predictions) > 0 {
			usable = append(usable, m)
		}
	}
	if len(usable) < c.minMembers {
		c.logger.Debugw("ensemble below minimum member count",
			"usable", len(usable), "minimum", c.minMembers)
		return InsufficientModels()
	}

	switch strategy {
	case StrategyMedian:
		return c.combineMedian(usable)
	case StrategyAdaptive:
		return c.combineAdaptive(usable, recentErrors)
	default:
		return c.combineWeighted(usable, StrategyWeightedAverage)
	}
}

func (c *Combiner) combineWeighted(members []Member, method Strategy) Prediction {
	var totalWeight float64
	for _, m := range members {
		totalWeight += m.Weight
	}

	var value, confidence float64
	contributions := make([]Contribution, len(members))
	for i, m := range members {
		w := m.Weight / totalWeight
		value += w * m.Predictions[0]
		confidence += w * memberConfidence(m)
		contributions[i] = Contribution{
			MemberID:   m.ID,
			Name:       m.Name,
			Prediction: m.Predictions[0],
			Weight:     w,
		}
	}

	var variance float64
	for _, m := range members {
		w := m.Weight / totalWeight
		d := m.Predictions[0] - value
		variance += w * d * d
	}
	uncertainty := math.Sqrt(variance)

	return Prediction{
		Value:       value,
		Confidence:  confidence,
		Uncertainty: uncertainty,
		Interval: Interval{
			Lower: value - intervalZ*uncertainty,
			Upper: value + intervalZ*uncertainty,
		},
		Contributions: contributions,
		Method:        string(method),
	}
}

func (c *Combiner) combineMedian(members []Member) Prediction {
	predictions := make([]float64, len(members))
	contributions := make([]Contribution, len(members))
	var confidence float64
	for i, m := range members {
		predictions[i] = m.Predictions[0]
		confidence += memberConfidence(m)
		contributions[i] = Contribution{
			MemberID:   m.ID,
			Name:       m.Name,
			Prediction: m.Predictions[0],
			Weight:     1 / float64(len(members)),
		}
	}
	confidence /= float64(len(members))

	value := median(predictions)
	uncertainty := madScale * stats.MAD(predictions)

	return Prediction{
		Value:       value,
		Confidence:  confidence,
		Uncertainty: uncertainty,
		Interval: Interval{
			Lower: value - intervalZ*uncertainty,
			Upper: value + intervalZ*uncertainty,
		},
		Contributions: contributions,
		Method:        string(StrategyMedian),
	}
}

// combineAdaptive reweights members by their inverse recent error and then
// proceeds exactly as the weighted average.
func (c *Combiner) combineAdaptive(members []Member, recentErrors map[string][]float64) Prediction {
	reweighted := make([]Member, len(members))
	for i, m := range members {
		reweighted[i] = m
		errs := recentErrors[m.ID]
		if len(errs) == 0 {
			continue
		}
		var meanAbs float64
		for _, e := range errs {
			meanAbs += math.Abs(e)
		}
		meanAbs /= float64(len(errs))
		reweighted[i].Weight = 1 / (meanAbs + errorEpsilon)
	}
	return c.combineWeighted(reweighted, StrategyAdaptive)
}

// UpdateWeights scales each member's weight by how it performed against the
// ensemble on one realized outcome, with a damped learning rate and clamped
// bounds so a single observation cannot swing the ensemble. The input slice
// is not modified.
func (c *Combiner) UpdateWeights(members []Member, actual, ensemblePredicted float64) []Member {
	ensembleErr := math.Abs(actual - ensemblePredicted)

	updated := make([]Member, len(members))
	for i, m := range members {
		updated[i] = m
		if len(m.Predictions) == 0 {
			continue
		}
		memberErr := math.Abs(actual - m.Predictions[0])
		multiplier := 1 + 0.1*(ensembleErr/(memberErr+errorEpsilon)-1)
		w := m.Weight * multiplier
		if w < 0.1 {
			w = 0.1
		}
		if w > 5.0 {
			w = 5.0
		}
		updated[i].Weight = w
	}
	return updated
}

// Diversity is the mean pairwise absolute disagreement between members'
// first-step predictions. Zero means the ensemble is redundant.
func Diversity(members []Member) float64 {
	preds := make([]float64, 0, len(members))
	for _, m := range members {
		if len(m.Predictions) > 0 {
			preds = append(preds, m.Predictions[0])
		}
	}
	if len(preds) < 2 {
		return 0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(preds)-1; i++ {
		for j := i + 1; j < len(preds); j++ {
			sum += math.Abs(preds[i] - preds[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

func memberConfidence(m Member) float64 {
	if m.Confidence != nil {
		return *m.Confidence
	}
	if m.Performance.R2 > 0 {
		return m.Performance.R2
	}
	return 0
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
