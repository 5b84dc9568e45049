package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialUpdating(t *testing.T) {
	model := New(1)
	require.Equal(t, 0, model.ObservationCount())

	t.Run("UpdateReturnsNewState", func(t *testing.T) {
		updated := model.Update([]float64{1}, 5, 1)
		assert.Equal(t, 1, updated.ObservationCount())
		assert.Equal(t, 0, model.ObservationCount(), "original state must be untouched")
		assert.Zero(t, model.Predict([]float64{1}).Mean, "prior mean stays centered at zero")
	})

	t.Run("PosteriorConvergesToGeneratingLine", func(t *testing.T) {
		// Noise-free y = 3 + 2x.
		m := New(1)
		for i := 1; i <= 20; i++ {
			x := float64(i)
			m = m.Update([]float64{x}, 3+2*x, 1)
		}
		pred := m.Predict([]float64{10})
		assert.InDelta(t, 23, pred.Mean, 0.5)
		assert.Equal(t, 20, m.ObservationCount())
	})

	t.Run("VarianceShrinksWithData", func(t *testing.T) {
		m := New(1)
		before := m.Predict([]float64{5}).Variance
		for i := 1; i <= 10; i++ {
			m = m.Update([]float64{float64(i)}, float64(i), 1)
		}
		after := m.Predict([]float64{5}).Variance
		assert.Less(t, after, before)
	})

	t.Run("CredibleIntervalBracketsMean", func(t *testing.T) {
		m := New(1)
		for i := 1; i <= 8; i++ {
			m = m.Update([]float64{float64(i)}, 2*float64(i), 1)
		}
		pred := m.Predict([]float64{4})
		assert.Less(t, pred.CredibleInterval.Lower, pred.Mean)
		assert.Greater(t, pred.CredibleInterval.Upper, pred.Mean)
		width := pred.CredibleInterval.Upper - pred.CredibleInterval.Lower
		assert.Greater(t, width, 0.0)
	})

	t.Run("NonPositiveWeightCountsAsOne", func(t *testing.T) {
		a := New(1).Update([]float64{2}, 4, 0)
		b := New(1).Update([]float64{2}, 4, 1)
		assert.InDelta(t, b.Predict([]float64{2}).Mean, a.Predict([]float64{2}).Mean, 1e-12)
	})
}

func TestConfidence(t *testing.T) {
	t.Run("ZeroWithoutObservations", func(t *testing.T) {
		assert.Zero(t, New(3).Confidence())
	})

	t.Run("IncreasesWithObservations", func(t *testing.T) {
		m := New(1)
		prev := m.Confidence()
		for i := 1; i <= 30; i++ {
			m = m.Update([]float64{float64(i)}, float64(i), 1)
			c := m.Confidence()
			assert.GreaterOrEqual(t, c, prev)
			prev = c
		}
		assert.Greater(t, prev, 0.5)
		assert.LessOrEqual(t, prev, 1.0)
	})
}

func TestDetectDrift(t *testing.T) {
	m := New(1)
	for i := 1; i <= 15; i++ {
		m = m.Update([]float64{float64(i)}, float64(i), 1)
	}

	t.Run("EmptyResidualsIsInactive", func(t *testing.T) {
		drift := m.DetectDrift(nil)
		assert.False(t, drift.HasDrift)
		assert.Contains(t, drift.Recommendation, "drift detection inactive")
	})

	t.Run("SmallResidualsAreCalibrated", func(t *testing.T) {
		drift := m.DetectDrift([]float64{0.1, -0.2, 0.15, -0.05})
		assert.False(t, drift.HasDrift)
	})

	t.Run("LargeResidualsFlagDrift", func(t *testing.T) {
		drift := m.DetectDrift([]float64{12, -11, 13, -12})
		assert.True(t, drift.HasDrift)
		assert.Contains(t, drift.Recommendation, "retrain")
	})
}
