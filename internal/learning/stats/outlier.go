package stats

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Method selects the statistical test used to flag anomalous observations.
type Method string

const (
	MethodZScore         Method = "zscore"
	MethodModifiedZScore Method = "modified_zscore"
	MethodIQR            Method = "iqr"
	MethodMovingWindow   Method = "moving_window"
	MethodMahalanobis    Method = "mahalanobis"
)

// Default thresholds per method; callers may override through Detect.
const (
	DefaultZScoreThreshold    = 3.0
	DefaultModifiedZThreshold = 3.5
	DefaultIQRMultiplier      = 1.5
	DefaultWindowThreshold    = 2.5
	DefaultMahalanobisCutoff  = 3.0
	DefaultWindowSize         = 5

	// madConsistency rescales the MAD to be consistent with the standard
	// deviation under normality.
	madConsistency = 0.6745
)

// Result is the per-observation outcome of an outlier test. Results are
// returned in input order, one per value.
type Result struct {
	Index     int     `json:"index"`
	IsOutlier bool    `json:"is_outlier"`
	Score     float64 `json:"score"`
	Method    Method  `json:"method"`
	Reason    string  `json:"reason,omitempty"`
}

// SummaryStats captures the spread of a series before cleaning.
type SummaryStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	IQR    float64 `json:"iqr"`
	MAD    float64 `json:"mad"`
}

// Report summarizes data quality for one series. OutlierIndices refer to the
// input ordering and Statistics are computed from the original values, not
// the cleaned ones.
type Report struct {
	TotalPoints       int          `json:"total_points"`
	OutlierIndices    []int        `json:"outlier_indices"`
	OutlierPercentage float64      `json:"outlier_percentage"`
	CleanValues       []float64    `json:"clean_values"`
	Statistics        SummaryStats `json:"statistics"`
}

// Detector runs univariate and multivariate outlier tests.
type Detector struct {
	logger     *zap.SugaredLogger
	windowSize int
}

// NewDetector creates an outlier detector. A nil logger disables logging.
func NewDetector(logger *zap.SugaredLogger) *Detector {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{
		logger:     logger,
		windowSize: DefaultWindowSize,
	}
}

// SetWindowSize overrides the moving-window span. Values below 2 are ignored.
func (d *Detector) SetWindowSize(n int) {
	if n >= 2 {
		d.windowSize = n
	}
}

// Detect runs the chosen univariate test over values. A threshold of 0 picks
// the method's default.
func (d *Detector) Detect(values []float64, method Method, threshold float64) []Result {
	switch method {
	case MethodModifiedZScore:
		if threshold == 0 {
			threshold = DefaultModifiedZThreshold
		}
		return d.detectModifiedZScore(values, threshold)
	case MethodIQR:
		if threshold == 0 {
			threshold = DefaultIQRMultiplier
		}
		return d.detectIQR(values, threshold)
	case MethodMovingWindow:
		if threshold == 0 {
			threshold = DefaultWindowThreshold
		}
		return d.detectMovingWindow(values, threshold)
	default:
		if threshold == 0 {
			threshold = DefaultZScoreThreshold
		}
		return d.detectZScore(values, threshold)
	}
}

func (d *Detector) detectZScore(values []float64, threshold float64) []Result {
	results := make([]Result, len(values))
	mean := Mean(values)
	std := StdDev(values)
	for i, v := range values {
		score := 0.0
		if std > 0 {
			score = math.Abs(v-mean) / std
		}
		results[i] = Result{Index: i, Score: score, Method: MethodZScore}
		if score > threshold {
			results[i].IsOutlier = true
			results[i].Reason = fmt.Sprintf("z-score %.2f exceeds threshold %.2f", score, threshold)
		}
	}
	return results
}

func (d *Detector) detectModifiedZScore(values []float64, threshold float64) []Result {
	results := make([]Result, len(values))
	median := Median(values)
	mad := MAD(values)
	for i, v := range values {
		// MAD of zero means the series is (near-)constant; score 0 avoids
		// flagging every point on flat data.
		score := 0.0
		if mad > 0 {
			score = math.Abs(madConsistency * (v - median) / mad)
		}
		results[i] = Result{Index: i, Score: score, Method: MethodModifiedZScore}
		if score > threshold {
			results[i].IsOutlier = true
			results[i].Reason = fmt.Sprintf("modified z-score %.2f exceeds threshold %.2f", score, threshold)
		}
	}
	return results
}

func (d *Detector) detectIQR(values []float64, multiplier float64) []Result {
	results := make([]Result, len(values))
	q1, q3 := Quartiles(values)
	iqr := q3 - q1
	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr
	for i, v := range values {
		score := 0.0
		if iqr > 0 {
			if v < lower {
				score = (lower - v) / iqr
			} else if v > upper {
				score = (v - upper) / iqr
			}
		}
		results[i] = Result{Index: i, Score: score, Method: MethodIQR}
		if score > 0 {
			results[i].IsOutlier = true
			results[i].Reason = fmt.Sprintf("value %.2f outside [%.2f, %.2f]", v, lower, upper)
		}
	}
	return results
}

func (d *Detector) detectMovingWindow(values []float64, threshold float64) []Result {
	results := make([]Result, len(values))
	half := d.windowSize / 2
	if half < 1 {
		half = 1
	}
	for i, v := range values {
		// Centered window excluding the point itself; edge windows shrink.
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		window := make([]float64, 0, hi-lo)
		for j := lo; j <= hi; j++ {
			if j != i {
				window = append(window, values[j])
			}
		}
		score := 0.0
		if len(window) > 0 {
			if std := StdDev(window); std > 0 {
				score = math.Abs(v-Mean(window)) / std
			}
		}
		results[i] = Result{Index: i, Score: score, Method: MethodMovingWindow}
		if score > threshold {
			results[i].IsOutlier = true
			results[i].Reason = fmt.Sprintf("local z-score %.2f exceeds threshold %.2f", score, threshold)
		}
	}
	return results
}

// DetectMultivariate scores each feature vector by Mahalanobis distance from
// the sample mean. A singular covariance matrix degrades to the identity,
// which reduces the distance to independent per-feature scoring.
func (d *Detector) DetectMultivariate(points [][]float64, threshold float64) []Result {
	if threshold == 0 {
		threshold = DefaultMahalanobisCutoff
	}
	results := make([]Result, len(points))
	if len(points) == 0 {
		return results
	}
	dims := len(points[0])

	means := make([]float64, dims)
	for _, p := range points {
		for j := 0; j < dims; j++ {
			means[j] += p[j]
		}
	}
	for j := range means {
		means[j] /= float64(len(points))
	}

	cov := make([][]float64, dims)
	for i := range cov {
		cov[i] = make([]float64, dims)
	}
	for _, p := range points {
		for i := 0; i < dims; i++ {
			for j := 0; j < dims; j++ {
				cov[i][j] += (p[i] - means[i]) * (p[j] - means[j])
			}
		}
	}
	for i := 0; i < dims; i++ {
		for j := 0; j < dims; j++ {
			cov[i][j] /= float64(len(points))
		}
	}

	inv, ok := Invert(cov)
	if !ok {
		d.logger.Debugw("covariance matrix singular, falling back to identity",
			"points", len(points), "dims", dims)
	}

	for idx, p := range points {
		diff := make([]float64, dims)
		for j := 0; j < dims; j++ {
			diff[j] = p[j] - means[j]
		}
		score := 0.0
		for i := 0; i < dims; i++ {
			for j := 0; j < dims; j++ {
				score += diff[i] * inv[i][j] * diff[j]
			}
		}
		score = math.Sqrt(math.Abs(score))
		results[idx] = Result{Index: idx, Score: score, Method: MethodMahalanobis}
		if score > threshold {
			results[idx].IsOutlier = true
			results[idx].Reason = fmt.Sprintf("mahalanobis distance %.2f exceeds threshold %.2f", score, threshold)
		}
	}
	return results
}

// QualityReport runs a univariate detector over values and reports the
// outlier set together with the retained clean values. Summary statistics
// describe the original series so the report reflects what was received,
// not what survived cleaning.
func (d *Detector) QualityReport(values []float64, method Method, threshold float64) Report {
	results := d.Detect(values, method, threshold)

	report := Report{
		TotalPoints:    len(values),
		OutlierIndices: make([]int, 0),
		CleanValues:    make([]float64, 0, len(values)),
		Statistics: SummaryStats{
			Mean:   Mean(values),
			Median: Median(values),
			StdDev: StdDev(values),
			IQR:    IQR(values),
			MAD:    MAD(values),
		},
	}
	for i, r := range results {
		if r.IsOutlier {
			report.OutlierIndices = append(report.OutlierIndices, i)
		} else {
			report.CleanValues = append(report.CleanValues, values[i])
		}
	}
	if len(values) > 0 {
		report.OutlierPercentage = float64(len(report.OutlierIndices)) / float64(len(values)) * 100
	}

	d.logger.Debugw("data quality report generated",
		"method", method,
		"total", report.TotalPoints,
		"outliers", len(report.OutlierIndices),
		"outlier_pct", report.OutlierPercentage)

	return report
}
