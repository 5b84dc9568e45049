package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strideworks/trainalytics/internal/config"
	"github.com/strideworks/trainalytics/internal/learning/bayes"
	"github.com/strideworks/trainalytics/internal/learning/ensemble"
	"github.com/strideworks/trainalytics/internal/learning/forecast"
	"github.com/strideworks/trainalytics/internal/learning/regression"
	"github.com/strideworks/trainalytics/internal/learning/stats"
	"github.com/strideworks/trainalytics/internal/learning/trend"
	"github.com/strideworks/trainalytics/pkg/metrics"
)

// phase labels the controller's position in the linear pipeline. Phases only
// advance; the single early exit jumps straight to done.
type phase string

const (
	phasePreprocessing      phase = "preprocessing"
	phaseFeatureEngineering phase = "feature_engineering"
	phaseTrendAnalysis      phase = "trend_analysis"
	phaseModelFitting       phase = "model_fitting"
	phaseEnsembleAssembly   phase = "ensemble_assembly"
	phasePrediction         phase = "prediction"
	phaseNarration          phase = "narration"
	phaseDone               phase = "done"
)

// singularFallbackLambda is the ridge penalty retried when the time-weighted
// normal equations are singular, which happens whenever the feature count
// exceeds the number of clean observations.
const singularFallbackLambda = 0.01

// residualWindow bounds how many trailing observations feed the drift and
// adaptive-error computations.
const residualWindow = 10

// Controller runs the learning pipeline end to end. It is stateless across
// invocations; independent calls may run concurrently.
type Controller struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	detector *stats.Detector
	engineer *FeatureEngineer
	fitter   *regression.Fitter
	combiner *ensemble.Combiner
}

// NewController creates a learning loop controller. A nil logger disables
// logging.
func NewController(cfg config.Config, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	detector := stats.NewDetector(logger)
	detector.SetWindowSize(cfg.Outliers.WindowSize)
	return &Controller{
		cfg:      cfg,
		logger:   logger,
		detector: detector,
		engineer: NewFeatureEngineer(logger),
		fitter:   regression.NewFitter(logger),
		combiner: ensemble.NewCombiner(logger, cfg.Ensemble.MinMembers),
	}
}

// RunLearningLoop executes the full pipeline with all members enabled.
func (c *Controller) RunLearningLoop(observations []TrainingData, target TargetVariable) (*LoopResult, error) {
	return c.RunWithOptions(observations, target, Options{})
}

// RunWithOptions executes the pipeline with optional stages toggled off,
// the quick-simulation entry point.
func (c *Controller) RunWithOptions(observations []TrainingData, target TargetVariable, opts Options) (*LoopResult, error) {
	start := time.Now()
	defer func() {
		metrics.LoopDuration.Observe(time.Since(start).Seconds())
	}()

	// Preprocessing: flag and drop outliers in the target series. Indices
	// in the report refer to the input ordering.
	c.enterPhase(phasePreprocessing)
	values := make([]float64, len(observations))
	for i, obs := range observations {
		values[i] = TargetValue(obs, target)
	}
	report := c.detector.QualityReport(values, stats.Method(c.cfg.Outliers.Method), c.outlierThreshold())
	metrics.OutlierRatio.Set(report.OutlierPercentage)

	clean := removeIndices(observations, report.OutlierIndices)
	if len(clean) < c.cfg.MinCleanPoints {
		c.enterPhase(phaseDone)
		metrics.LearningRuns.WithLabelValues("insufficient_data").Inc()
		return c.insufficientDataResult(report, target), nil
	}

	c.enterPhase(phaseFeatureEngineering)
	points := c.engineer.Engineer(clean, target)

	c.enterPhase(phaseTrendAnalysis)
	trendPoints := make([]trend.Point, len(clean))
	for i, obs := range clean {
		trendPoints[i] = trend.Point{Timestamp: obs.Timestamp, Value: TargetValue(obs, target)}
	}
	analysis := trend.Detect(trendPoints)

	c.enterPhase(phaseModelFitting)
	model, err := c.fitWeighted(points)
	if err != nil {
		metrics.LearningRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("model fitting failed: %w", err)
	}

	var bayesModel *bayes.Model
	var drift bayes.Drift
	if !opts.DisableBayesian {
		bayesModel = bayes.New(len(points[0].Features))
		for _, p := range points {
			bayesModel = bayesModel.Update(p.Features, p.Target, p.Weight)
		}
		drift = bayesModel.DetectDrift(c.recentResiduals(bayesModel, points))
	}

	series := make([]float64, len(clean))
	for i, obs := range clean {
		series[i] = TargetValue(obs, target)
	}
	var smoothed, movingAvg forecast.Result
	if !opts.DisableTimeSeries {
		smoothed = forecast.TripleExponentialSmoothing(series, c.cfg.Forecast.Alpha, c.cfg.Forecast.Beta, c.cfg.Forecast.Horizon)
		movingAvg = forecast.AdaptiveMovingAverage(series, c.cfg.Forecast.Horizon)
	}

	// Ensemble assembly: the regression and Bayesian members are always
	// included; time-series members must clear the confidence floor. The
	// builder keeps the membership rule in one place.
	c.enterPhase(phaseEnsembleAssembly)
	latest := points[len(points)-1].Features
	builder := newMemberBuilder(c.cfg.Ensemble.ConfidenceFloor)

	builder.add(ensemble.Member{
		ID:     uuid.NewString(),
		Name:   "time_weighted_regression",
		Type:   ensemble.TypeRegression,
		Weight: 1,
		Performance: ensemble.Performance{
			MAE: model.MAE,
			MSE: model.MSE,
			R2:  model.R2Score,
		},
		Predictions: []float64{model.Predict(latest)},
	})
	if bayesModel != nil {
		pred := bayesModel.Predict(latest)
		conf := bayesModel.Confidence()
		builder.add(ensemble.Member{
			ID:          uuid.NewString(),
			Name:        "bayesian_linear",
			Type:        ensemble.TypeBayesian,
			Weight:      1,
			Predictions: []float64{pred.Mean},
			Confidence:  &conf,
		})
	}
	builder.addIfConfident(forecastMember("exponential_smoothing", smoothed))
	builder.addIfConfident(forecastMember("adaptive_moving_average", movingAvg))
	members := builder.build()

	c.enterPhase(phasePrediction)
	strategy := ensemble.Strategy(c.cfg.Ensemble.Strategy)
	var recentErrors map[string][]float64
	if strategy == ensemble.StrategyAdaptive {
		recentErrors = c.memberErrors(members, model, bayesModel, points)
	}
	prediction := c.combiner.Combine(members, strategy, recentErrors)

	state := LearningState{
		Target:          target,
		DataQuality:     report,
		Trend:           analysis,
		RegressionModel: model,
		BayesianModel:   bayesModel,
		Members:         members,
		Prediction:      prediction,
		Performance: PerformanceMetrics{
			R2Score:           model.R2Score,
			MSE:               model.MSE,
			MAE:               model.MAE,
			EnsembleDiversity: ensemble.Diversity(members),
		},
		CreatedAt: time.Now().UTC(),
	}
	if bayesModel != nil {
		state.Performance.BayesianConfidence = bayesModel.Confidence()
	}

	c.enterPhase(phaseNarration)
	recommendations := c.recommendations(&state, drift)
	insights := c.insights(&state)

	c.enterPhase(phaseDone)
	metrics.LearningRuns.WithLabelValues("ok").Inc()
	c.logger.Infow("learning loop completed",
		"target", target,
		"observations", len(observations),
		"clean", len(clean),
		"members", len(members),
		"method", prediction.Method,
		"prediction", prediction.Value,
		"duration", time.Since(start))

	return &LoopResult{
		State:           state,
		Prediction:      prediction,
		Recommendations: recommendations,
		Insights:        insights,
	}, nil
}

// fitWeighted fits the time-weighted regression, retrying with a small ridge
// penalty when the normal equations are singular.
func (c *Controller) fitWeighted(points []regression.DataPoint) (*regression.Model, error) {
	fitOpts := regression.Options{
		Variant:      regression.VariantWeighted,
		HalfLifeDays: c.cfg.Regression.HalfLifeDays,
	}
	model, err := c.fitter.Fit(points, fitOpts)
	if err == nil {
		return model, nil
	}

	c.logger.Debugw("weighted fit singular, retrying with ridge penalty",
		"samples", len(points), "lambda", singularFallbackLambda)
	fitOpts.Lambda = singularFallbackLambda
	return c.fitter.Fit(points, fitOpts)
}

// recentResiduals computes the Bayesian model's residuals over the trailing
// observations, feeding drift detection with in-run history.
func (c *Controller) recentResiduals(model *bayes.Model, points []regression.DataPoint) []float64 {
	lo := len(points) - residualWindow
	if lo < 0 {
		lo = 0
	}
	residuals := make([]float64, 0, len(points)-lo)
	for _, p := range points[lo:] {
		residuals = append(residuals, p.Target-model.Predict(p.Features).Mean)
	}
	return residuals
}

// memberErrors builds the recent absolute-error history consumed by the
// adaptive combination strategy. Time-series members keep their static
// weights; one-step backtest errors are already folded into their confidence.
func (c *Controller) memberErrors(members []ensemble.Member, model *regression.Model, bayesModel *bayes.Model, points []regression.DataPoint) map[string][]float64 {
	lo := len(points) - residualWindow
	if lo < 0 {
		lo = 0
	}
	recent := points[lo:]

	errors := make(map[string][]float64, len(members))
	for _, m := range members {
		switch m.Type {
		case ensemble.TypeRegression:
			errs := make([]float64, len(recent))
			for i, p := range recent {
				errs[i] = math.Abs(p.Target - model.Predict(p.Features))
			}
			errors[m.ID] = errs
		case ensemble.TypeBayesian:
			if bayesModel == nil {
				continue
			}
			errs := make([]float64, len(recent))
			for i, p := range recent {
				errs[i] = math.Abs(p.Target - bayesModel.Predict(p.Features).Mean)
			}
			errors[m.ID] = errs
		}
	}
	return errors
}

func (c *Controller) outlierThreshold() float64 {
	switch stats.Method(c.cfg.Outliers.Method) {
	case stats.MethodModifiedZScore:
		return c.cfg.Outliers.ModifiedZThreshold
	case stats.MethodIQR:
		return c.cfg.Outliers.IQRMultiplier
	case stats.MethodMovingWindow:
		return c.cfg.Outliers.WindowThreshold
	default:
		return c.cfg.Outliers.ZScoreThreshold
	}
}

// insufficientDataResult is the typed sentinel returned when too few clean
// observations remain to train anything.
func (c *Controller) insufficientDataResult(report stats.Report, target TargetVariable) *LoopResult {
	prediction := ensemble.Prediction{
		Value:       0,
		Confidence:  0,
		Uncertainty: math.Inf(1),
		Interval:    ensemble.Interval{Lower: math.Inf(-1), Upper: math.Inf(1)},
		Method:      MethodInsufficientData,
	}
	state := LearningState{
		Target:      target,
		DataQuality: report,
		Trend:       trend.Analysis{Direction: trend.Stable, PValue: 1},
		Prediction:  prediction,
		CreatedAt:   time.Now().UTC(),
	}
	guidance := fmt.Sprintf(
		"At least %d clean training sessions are required for a forecast; %d remain after outlier removal. Keep logging workouts.",
		c.cfg.MinCleanPoints, len(report.CleanValues))

	return &LoopResult{
		State:           state,
		Prediction:      prediction,
		Recommendations: []string{guidance},
		Insights:        []string{},
	}
}

func (c *Controller) enterPhase(p phase) {
	c.logger.Debugw("learning loop phase", "phase", p)
}

// removeIndices drops the observations at the given input indices while
// preserving the order of the remainder.
func removeIndices(observations []TrainingData, indices []int) []TrainingData {
	if len(indices) == 0 {
		out := make([]TrainingData, len(observations))
		copy(out, observations)
		return out
	}
	drop := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		drop[idx] = struct{}{}
	}
	out := make([]TrainingData, 0, len(observations)-len(indices))
	for i, obs := range observations {
		if _, skip := drop[i]; !skip {
			out = append(out, obs)
		}
	}
	return out
}

// memberBuilder accumulates ensemble members and applies the confidence
// gate for conditional members in one place.
type memberBuilder struct {
	floor   float64
	members []ensemble.Member
}

func newMemberBuilder(confidenceFloor float64) *memberBuilder {
	return &memberBuilder{floor: confidenceFloor}
}

// add appends an unconditional member.
func (b *memberBuilder) add(m ensemble.Member) {
	b.members = append(b.members, m)
}

// addIfConfident appends a member only when its self-reported confidence
// clears the floor; below the bar it is omitted entirely rather than carried
// with zero weight.
func (b *memberBuilder) addIfConfident(m ensemble.Member) {
	if m.Confidence == nil || *m.Confidence <= b.floor || len(m.Predictions) == 0 {
		return
	}
	b.members = append(b.members, m)
}

func (b *memberBuilder) build() []ensemble.Member {
	return b.members
}

// forecastMember wraps a forecast result as an ensemble member.
func forecastMember(name string, r forecast.Result) ensemble.Member {
	conf := r.Confidence
	return ensemble.Member{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        ensemble.TypeTimeSeries,
		Weight:      1,
		Predictions: r.Predictions,
		Confidence:  &conf,
	}
}
