package ensemble

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func confPtr(c float64) *float64 { return &c }

func member(id string, weight, prediction float64) Member {
	return Member{
		ID:          id,
		Name:        id,
		Type:        TypeCustom,
		Weight:      weight,
		Predictions: []float64{prediction},
		Confidence:  confPtr(0.8),
	}
}

func TestCombineWeightedAverage(t *testing.T) {
	combiner := NewCombiner(zaptest.NewLogger(t).Sugar(), 2)

	t.Run("NormalizesWeights", func(t *testing.T) {
		members := []Member{
			member("a", 1, 10),
			member("b", 1, 10),
			member("c", 2, 16),
		}
		p := combiner.Combine(members, StrategyWeightedAverage, nil)
		assert.InDelta(t, 13.0, p.Value, 1e-9, "(1*10 + 1*10 + 2*16) / 4")
		assert.Equal(t, string(StrategyWeightedAverage), p.Method)
		require.Len(t, p.Contributions, 3)
		assert.InDelta(t, 0.5, p.Contributions[2].Weight, 1e-9)
	})

	t.Run("IntervalBracketsValue", func(t *testing.T) {
		p := combiner.Combine([]Member{member("a", 1, 10), member("b", 1, 14)}, StrategyWeightedAverage, nil)
		assert.InDelta(t, 12.0, p.Value, 1e-9)
		assert.Greater(t, p.Uncertainty, 0.0)
		assert.InDelta(t, p.Value-1.96*p.Uncertainty, p.Interval.Lower, 1e-9)
		assert.InDelta(t, p.Value+1.96*p.Uncertainty, p.Interval.Upper, 1e-9)
	})

	t.Run("FallsBackToR2WhenNoConfidence", func(t *testing.T) {
		members := []Member{
			{ID: "a", Weight: 1, Predictions: []float64{10}, Performance: Performance{R2: 0.6}},
			{ID: "b", Weight: 1, Predictions: []float64{10}, Performance: Performance{R2: 0.4}},
		}
		p := combiner.Combine(members, StrategyWeightedAverage, nil)
		assert.InDelta(t, 0.5, p.Confidence, 1e-9)
	})

	t.Run("NonPositiveWeightsExcluded", func(t *testing.T) {
		members := []Member{
			member("a", 1, 10),
			member("b", 1, 12),
			member("dead", 0, 1000),
			member("negative", -2, -1000),
		}
		p := combiner.Combine(members, StrategyWeightedAverage, nil)
		assert.InDelta(t, 11.0, p.Value, 1e-9)
		assert.Len(t, p.Contributions, 2)
	})
}

func TestCombineSentinels(t *testing.T) {
	combiner := NewCombiner(zaptest.NewLogger(t).Sugar(), 2)

	t.Run("NoMembers", func(t *testing.T) {
		p := combiner.Combine(nil, StrategyWeightedAverage, nil)
		assert.Equal(t, MethodInsufficientModels, p.Method)
		assert.Zero(t, p.Value)
		assert.Zero(t, p.Confidence)
		assert.True(t, math.IsInf(p.Uncertainty, 1))
		assert.True(t, math.IsInf(p.Interval.Lower, -1))
		assert.True(t, math.IsInf(p.Interval.Upper, 1))
	})

	t.Run("AllZeroWeights", func(t *testing.T) {
		p := combiner.Combine([]Member{member("a", 0, 5), member("b", 0, 7)}, StrategyMedian, nil)
		assert.Equal(t, MethodInsufficientModels, p.Method)
		assert.True(t, math.IsInf(p.Uncertainty, 1))
	})

	t.Run("SentinelSurvivesJSONEncoding", func(t *testing.T) {
		raw, err := json.Marshal(InsufficientModels())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"uncertainty":null`)
	})
}

func TestCombineMedianRobustness(t *testing.T) {
	combiner := NewCombiner(zaptest.NewLogger(t).Sugar(), 2)
	members := []Member{
		member("a", 1, 10.0),
		member("b", 1, 10.2),
		member("c", 1, 9.8),
		member("d", 1, 10.1),
		member("wild", 1, 50.0),
	}

	medianPred := combiner.Combine(members, StrategyMedian, nil)
	weightedPred := combiner.Combine(members, StrategyWeightedAverage, nil)

	// The divergent member drags the mean but not the median.
	assert.InDelta(t, 10.1, medianPred.Value, 1e-9)
	assert.Greater(t, weightedPred.Value, 15.0)
	assert.Equal(t, string(StrategyMedian), medianPred.Method)
}

func TestCombineAdaptive(t *testing.T) {
	combiner := NewCombiner(zaptest.NewLogger(t).Sugar(), 2)
	members := []Member{
		member("accurate", 1, 10),
		member("sloppy", 1, 20),
	}

	t.Run("InverseErrorReweighting", func(t *testing.T) {
		recentErrors := map[string][]float64{
			"accurate": {0.1, 0.2, 0.1},
			"sloppy":   {5.0, 6.0, 7.0},
		}
		p := combiner.Combine(members, StrategyAdaptive, recentErrors)
		assert.Less(t, p.Value, 11.0, "the accurate member should dominate")
		assert.Equal(t, string(StrategyAdaptive), p.Method)
	})

	t.Run("MissingHistoryKeepsStaticWeight", func(t *testing.T) {
		p := combiner.Combine(members, StrategyAdaptive, nil)
		assert.InDelta(t, 15.0, p.Value, 1e-9, "equal static weights mean a plain average")
	})
}

func TestUpdateWeights(t *testing.T) {
	combiner := NewCombiner(zaptest.NewLogger(t).Sugar(), 2)
	members := []Member{
		member("better", 1, 10), // error 0 vs actual 10
		member("worse", 1, 18),  // error 8
	}

	updated := combiner.UpdateWeights(members, 10, 14)

	assert.Greater(t, updated[0].Weight, members[0].Weight, "beating the ensemble gains weight")
	assert.Less(t, updated[1].Weight, members[1].Weight, "lagging the ensemble loses weight")
	assert.Equal(t, 1.0, members[0].Weight, "input members are not mutated")

	t.Run("ClampsToBounds", func(t *testing.T) {
		heavy := []Member{member("m", 100, 10)}
		clamped := combiner.UpdateWeights(heavy, 10, 50)
		assert.LessOrEqual(t, clamped[0].Weight, 5.0)

		light := []Member{member("m", 0.1, 50)}
		clamped = combiner.UpdateWeights(light, 10, 10)
		assert.GreaterOrEqual(t, clamped[0].Weight, 0.1)
	})
}

func TestDiversity(t *testing.T) {
	assert.Zero(t, Diversity([]Member{member("a", 1, 10)}))

	d := Diversity([]Member{member("a", 1, 10), member("b", 1, 14), member("c", 1, 12)})
	// Pairwise gaps: |10-14|=4, |10-12|=2, |14-12|=2.
	assert.InDelta(t, 8.0/3.0, d, 1e-9)
}
