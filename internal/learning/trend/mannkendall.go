// Package trend implements the Mann-Kendall monotonic trend test with Sen's
// slope estimation over irregularly sampled time series.
package trend

import (
	"math"
	"sort"
	"time"
)

// Direction labels the detected trend.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

// significanceLevel is the two-tailed p-value below which a trend is labeled
// increasing or decreasing. At or above it the direction is always stable,
// regardless of the slope sign.
const significanceLevel = 0.05

// minPoints is the smallest series the test accepts.
const minPoints = 4

// Point is one observation in the analyzed series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Analysis is the outcome of a trend test.
type Analysis struct {
	Direction  Direction `json:"direction"`
	Slope      float64   `json:"slope"`
	Confidence float64   `json:"confidence"`
	PValue     float64   `json:"p_value"`
	KendallTau float64   `json:"kendall_tau"`
}

// Detect runs the Mann-Kendall test over the series and estimates the trend
// magnitude with Sen's slope (units per day). Series shorter than four points
// are reported as stable with no confidence.
func Detect(points []Point) Analysis {
	n := len(points)
	if n < minPoints {
		return Analysis{Direction: Stable, Slope: 0, Confidence: 0, PValue: 1, KendallTau: 0}
	}

	// Kendall's S: concordant minus discordant ordered pairs.
	s := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			diff := points[j].Value - points[i].Value
			switch {
			case diff > 0:
				s++
			case diff < 0:
				s--
			}
		}
	}

	variance := float64(n*(n-1)*(2*n+5)) / 18.0

	// Continuity-corrected Z statistic, pulled toward zero.
	var z float64
	switch {
	case s > 0:
		z = (float64(s) - 1) / math.Sqrt(variance)
	case s < 0:
		z = (float64(s) + 1) / math.Sqrt(variance)
	default:
		z = 0
	}

	pValue := 2 * (1 - normalCDF(math.Abs(z)))
	if pValue > 1 {
		pValue = 1
	}

	tau := float64(s) / (float64(n*(n-1)) / 2)
	slope := senSlope(points)

	direction := Stable
	if pValue < significanceLevel {
		if slope > 0 {
			direction = Increasing
		} else if slope < 0 {
			direction = Decreasing
		}
	}

	return Analysis{
		Direction:  direction,
		Slope:      slope,
		Confidence: 1 - pValue,
		PValue:     pValue,
		KendallTau: tau,
	}
}

// senSlope returns the median of all pairwise value-per-day slopes over
// strictly positive time gaps.
func senSlope(points []Point) float64 {
	slopes := make([]float64, 0, len(points)*(len(points)-1)/2)
	for i := 0; i < len(points)-1; i++ {
		for j := i + 1; j < len(points); j++ {
			days := points[j].Timestamp.Sub(points[i].Timestamp).Hours() / 24
			if days > 0 {
				slopes = append(slopes, (points[j].Value-points[i].Value)/days)
			}
		}
	}
	if len(slopes) == 0 {
		return 0
	}
	sort.Float64s(slopes)
	mid := len(slopes) / 2
	if len(slopes)%2 == 1 {
		return slopes[mid]
	}
	return (slopes[mid-1] + slopes[mid]) / 2
}

// normalCDF evaluates the standard normal distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
