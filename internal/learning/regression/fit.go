package regression

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strideworks/trainalytics/internal/learning/stats"
)

// Fitting defaults.
const (
	DefaultRidgeLambda      = 0.1
	DefaultHalfLifeDays     = 30.0
	DefaultPolynomialDegree = 2

	// polynomialLambda is the fixed ridge penalty applied after polynomial
	// expansion to keep the enlarged basis well conditioned.
	polynomialLambda = 0.01
)

// ErrNoData is returned when Fit receives an empty point set.
var ErrNoData = errors.New("regression: no data points")

// Options configure a single fit.
type Options struct {
	Variant Variant

	// Lambda is the ridge penalty. Zero is a valid no-penalty fit that
	// reproduces OLS; negative selects DefaultRidgeLambda.
	Lambda       float64
	HalfLifeDays float64
	Degree       int

	// ReferenceTime anchors the time-decay weighting. When zero, the most
	// recent point timestamp is used so that repeated fits over the same
	// data stay deterministic.
	ReferenceTime time.Time
}

// Fitter solves least-squares problems over DataPoints.
type Fitter struct {
	logger *zap.SugaredLogger
}

// NewFitter creates a regression fitter. A nil logger disables logging.
func NewFitter(logger *zap.SugaredLogger) *Fitter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fitter{logger: logger}
}

// Fit trains a linear model on points using the variant selected in opts.
func (f *Fitter) Fit(points []DataPoint, opts Options) (*Model, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	dims := len(points[0].Features)
	for i, p := range points {
		if len(p.Features) != dims {
			return nil, fmt.Errorf("regression: point %d has %d features, expected %d", i, len(p.Features), dims)
		}
	}

	variant := opts.Variant
	if variant == "" {
		variant = VariantOLS
	}

	work := points
	lambda := 0.0
	switch variant {
	case VariantRidge:
		lambda = opts.Lambda
		if lambda < 0 {
			lambda = DefaultRidgeLambda
		}
	case VariantWeighted:
		work = reweight(points, opts)
		// An optional ridge penalty keeps short histories solvable when
		// the feature count exceeds the observation count.
		if opts.Lambda > 0 {
			lambda = opts.Lambda
		}
	case VariantPolynomial:
		work = expandPolynomial(points, degreeOrDefault(opts.Degree))
		lambda = polynomialLambda
	}

	coeffs, err := solveNormalEquations(work, lambda, variant == VariantWeighted)
	if err != nil {
		return nil, err
	}

	model := &Model{
		ID:           uuid.NewString(),
		Intercept:    coeffs[0],
		Coefficients: coeffs[1:],
		SampleCount:  len(points),
		ModelType:    variant,
		CreatedAt:    time.Now().UTC(),
	}
	scoreModel(model, work)

	f.logger.Debugw("regression model fitted",
		"variant", variant,
		"samples", model.SampleCount,
		"features", len(model.Coefficients),
		"r2", model.R2Score,
		"mse", model.MSE)

	return model, nil
}

func degreeOrDefault(degree int) int {
	if degree < 2 {
		return DefaultPolynomialDegree
	}
	return degree
}

// reweight applies exponential time decay to each point with a timestamp.
// Points without timestamps keep weight 1.
func reweight(points []DataPoint, opts Options) []DataPoint {
	halfLife := opts.HalfLifeDays
	if halfLife <= 0 {
		halfLife = DefaultHalfLifeDays
	}
	ref := opts.ReferenceTime
	if ref.IsZero() {
		for _, p := range points {
			if p.Timestamp != nil && p.Timestamp.After(ref) {
				ref = *p.Timestamp
			}
		}
	}

	out := make([]DataPoint, len(points))
	for i, p := range points {
		out[i] = p
		if p.Timestamp == nil {
			out[i].Weight = 1
			continue
		}
		daysAgo := ref.Sub(*p.Timestamp).Hours() / 24
		if daysAgo < 0 {
			daysAgo = 0
		}
		out[i].Weight = math.Exp(-math.Ln2 * daysAgo / halfLife)
	}
	return out
}

// expandPolynomial augments each feature vector with squared terms, pairwise
// interactions, and cubic terms for degree >= 3.
func expandPolynomial(points []DataPoint, degree int) []DataPoint {
	out := make([]DataPoint, len(points))
	for i, p := range points {
		expanded := make([]float64, 0, len(p.Features)*3)
		expanded = append(expanded, p.Features...)
		for _, v := range p.Features {
			expanded = append(expanded, v*v)
		}
		for a := 0; a < len(p.Features); a++ {
			for b := a + 1; b < len(p.Features); b++ {
				expanded = append(expanded, p.Features[a]*p.Features[b])
			}
		}
		if degree >= 3 {
			for _, v := range p.Features {
				expanded = append(expanded, v*v*v)
			}
		}
		out[i] = DataPoint{Features: expanded, Target: p.Target, Weight: p.Weight, Timestamp: p.Timestamp}
	}
	return out
}

// solveNormalEquations computes beta = (Xt W X + lambda*I')^-1 Xt W y, where
// the intercept column of ones is prepended to X and the ridge penalty skips
// the intercept entry.
func solveNormalEquations(points []DataPoint, lambda float64, weighted bool) ([]float64, error) {
	n := len(points)
	cols := len(points[0].Features) + 1

	xtx := make([][]float64, cols)
	for i := range xtx {
		xtx[i] = make([]float64, cols)
	}
	xty := make([]float64, cols)

	row := make([]float64, cols)
	for p := 0; p < n; p++ {
		row[0] = 1
		copy(row[1:], points[p].Features)

		w := 1.0
		if weighted {
			w = points[p].Weight
			if w <= 0 {
				w = 1
			}
		}
		for i := 0; i < cols; i++ {
			wi := w * row[i]
			for j := i; j < cols; j++ {
				xtx[i][j] += wi * row[j]
			}
			xty[i] += wi * points[p].Target
		}
	}
	// Mirror the upper triangle.
	for i := 1; i < cols; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}

	if lambda > 0 {
		for i := 1; i < cols; i++ {
			xtx[i][i] += lambda
		}
	}

	coeffs, ok := stats.SolveLinearSystem(xtx, xty)
	if !ok {
		return nil, errors.New("regression: normal equation matrix is singular")
	}
	return coeffs, nil
}

// scoreModel fills in R2/MSE/MAE computed against the unweighted targets.
func scoreModel(model *Model, points []DataPoint) {
	n := float64(len(points))
	meanTarget := 0.0
	for _, p := range points {
		meanTarget += p.Target
	}
	meanTarget /= n

	var ssRes, ssTot, absErr float64
	for _, p := range points {
		pred := model.Predict(p.Features)
		err := p.Target - pred
		ssRes += err * err
		absErr += math.Abs(err)
		d := p.Target - meanTarget
		ssTot += d * d
	}

	model.MSE = ssRes / n
	model.MAE = absErr / n
	if ssTot > 0 {
		model.R2Score = 1 - ssRes/ssTot
	}
}
