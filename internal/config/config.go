// Package config loads and validates the learning engine configuration from
// YAML files and TRAINALYTICS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// OutlierConfig selects the preprocessing outlier test and its thresholds.
type OutlierConfig struct {
	Method             string  `mapstructure:"method" validate:"oneof=zscore modified_zscore iqr moving_window"`
	ZScoreThreshold    float64 `mapstructure:"zscore_threshold" validate:"gt=0"`
	ModifiedZThreshold float64 `mapstructure:"modified_z_threshold" validate:"gt=0"`
	IQRMultiplier      float64 `mapstructure:"iqr_multiplier" validate:"gt=0"`
	WindowSize         int     `mapstructure:"window_size" validate:"gte=2"`
	WindowThreshold    float64 `mapstructure:"window_threshold" validate:"gt=0"`
}

// RegressionConfig tunes the normal-equation fitting.
type RegressionConfig struct {
	RidgeLambda      float64 `mapstructure:"ridge_lambda" validate:"gte=0"`
	HalfLifeDays     float64 `mapstructure:"half_life_days" validate:"gt=0"`
	PolynomialDegree int     `mapstructure:"polynomial_degree" validate:"gte=2,lte=4"`
}

// ForecastConfig tunes the time-series members.
type ForecastConfig struct {
	Alpha   float64 `mapstructure:"alpha" validate:"gt=0,lt=1"`
	Beta    float64 `mapstructure:"beta" validate:"gt=0,lt=1"`
	Horizon int     `mapstructure:"horizon" validate:"gte=1,lte=30"`
}

// EnsembleConfig tunes ensemble assembly and combination.
type EnsembleConfig struct {
	Strategy        string  `mapstructure:"strategy" validate:"oneof=weighted_average median adaptive"`
	MinMembers      int     `mapstructure:"min_members" validate:"gte=1"`
	ConfidenceFloor float64 `mapstructure:"confidence_floor" validate:"gte=0,lte=1"`
}

// Config is the full engine configuration.
type Config struct {
	LogLevel       string           `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	MinCleanPoints int              `mapstructure:"min_clean_points" validate:"gte=2"`
	Outliers       OutlierConfig    `mapstructure:"outliers"`
	Regression     RegressionConfig `mapstructure:"regression"`
	Forecast       ForecastConfig   `mapstructure:"forecast"`
	Ensemble       EnsembleConfig   `mapstructure:"ensemble"`
}

// Default returns the configuration matching the engine's documented
// constants.
func Default() Config {
	return Config{
		LogLevel:       "info",
		MinCleanPoints: 5,
		Outliers: OutlierConfig{
			Method:             "modified_zscore",
			ZScoreThreshold:    3.0,
			ModifiedZThreshold: 3.5,
			IQRMultiplier:      1.5,
			WindowSize:         5,
			WindowThreshold:    2.5,
		},
		Regression: RegressionConfig{
			RidgeLambda:      0.1,
			HalfLifeDays:     30,
			PolynomialDegree: 2,
		},
		Forecast: ForecastConfig{
			Alpha:   0.3,
			Beta:    0.1,
			Horizon: 7,
		},
		Ensemble: EnsembleConfig{
			Strategy:        "weighted_average",
			MinMembers:      2,
			ConfidenceFloor: 0.3,
		},
	}
}

// Load reads configuration from the given YAML file (optional when path is
// empty) layered over defaults and environment variables, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRAINALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("trainalytics")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every threshold and smoothing factor is in range.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("min_clean_points", d.MinCleanPoints)
	v.SetDefault("outliers.method", d.Outliers.Method)
	v.SetDefault("outliers.zscore_threshold", d.Outliers.ZScoreThreshold)
	v.SetDefault("outliers.modified_z_threshold", d.Outliers.ModifiedZThreshold)
	v.SetDefault("outliers.iqr_multiplier", d.Outliers.IQRMultiplier)
	v.SetDefault("outliers.window_size", d.Outliers.WindowSize)
	v.SetDefault("outliers.window_threshold", d.Outliers.WindowThreshold)
	v.SetDefault("regression.ridge_lambda", d.Regression.RidgeLambda)
	v.SetDefault("regression.half_life_days", d.Regression.HalfLifeDays)
	v.SetDefault("regression.polynomial_degree", d.Regression.PolynomialDegree)
	v.SetDefault("forecast.alpha", d.Forecast.Alpha)
	v.SetDefault("forecast.beta", d.Forecast.Beta)
	v.SetDefault("forecast.horizon", d.Forecast.Horizon)
	v.SetDefault("ensemble.strategy", d.Ensemble.Strategy)
	v.SetDefault("ensemble.min_members", d.Ensemble.MinMembers)
	v.SetDefault("ensemble.confidence_floor", d.Ensemble.ConfidenceFloor)
}
