// Package regression fits linear models to engineered training features by
// solving the normal equations, with ridge, time-weighted and polynomial
// variants.
package regression

import "time"

// Variant selects the fitting strategy.
type Variant string

const (
	VariantOLS        Variant = "ols"
	VariantRidge      Variant = "ridge"
	VariantWeighted   Variant = "time_weighted"
	VariantPolynomial Variant = "polynomial"
)

// DataPoint is one training example. Weight defaults to 1; the time-weighted
// variant recomputes it from Timestamp when present.
type DataPoint struct {
	Features  []float64  `json:"features"`
	Target    float64    `json:"target"`
	Weight    float64    `json:"weight"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Model is an immutable fitted linear model. A new fit always produces a new
// Model; nothing updates one in place.
type Model struct {
	ID           string    `json:"id"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	R2Score      float64   `json:"r2_score"`
	MSE          float64   `json:"mse"`
	MAE          float64   `json:"mae"`
	SampleCount  int       `json:"sample_count"`
	ModelType    Variant   `json:"model_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Predict evaluates the model at the given feature vector. Extra features
// beyond the fitted coefficient count are ignored.
func (m *Model) Predict(features []float64) float64 {
	sum := m.Intercept
	for i, c := range m.Coefficients {
		if i >= len(features) {
			break
		}
		sum += c * features[i]
	}
	return sum
}
