package contracts

import "time"

// ForecastOptions controls the forecasting stage.
type ForecastOptions struct {
	Horizon    int       `json:"horizon"`
	Confidence float64   `json:"confidence"`
	Kind       ModelKind `json:"kind"`
}

// DefaultForecastOptions returns the forecasting defaults.
func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{
		Horizon:    30,
		Confidence: 0.95,
	}
}

// ForecastPoint is one future day with its point estimate and interval.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// ForecastSummary aggregates the horizon for reporting.
type ForecastSummary struct {
	Total     float64   `json:"total"`
	DailyMean float64   `json:"daily_mean"`
	PeakDate  time.Time `json:"peak_date"`
	PeakValue float64   `json:"peak_value"`
	LowDate   time.Time `json:"low_date"`
	LowValue  float64   `json:"low_value"`
	Trend     string    `json:"trend"`
}

// Forecast is the output of the forecasting stage for one session.
type Forecast struct {
	SessionID      string          `json:"session_id"`
	Kind           ModelKind       `json:"kind"`
	FeatureVersion int64           `json:"feature_version"`
	Horizon        int             `json:"horizon"`
	Confidence     float64         `json:"confidence"`
	Points         []ForecastPoint `json:"points"`
	Summary        ForecastSummary `json:"summary"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
