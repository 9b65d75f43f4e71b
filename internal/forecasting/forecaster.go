package forecasting

import (
	"math"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/features"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "forecast"

// Forecaster rolls a trained model forward over the horizon.
type Forecaster struct {
	log      *logger.Logger
	holidays features.HolidaySource
	weather  features.WeatherSource
}

// NewForecaster creates a Forecaster. The exogenous sources must be the same
// ones the feature table was built with.
func NewForecaster(log *logger.Logger, holidays features.HolidaySource, weather features.WeatherSource) *Forecaster {
	return &Forecaster{
		log:      log.WithComponent("forecaster"),
		holidays: holidays,
		weather:  weather,
	}
}

// Forecast produces point estimates and intervals for the days after the end
// of the cleaned series.
//
// Feature-driven models are applied recursively: each predicted day is
// appended to the demand history so the next day's lag and rolling features
// are computed over it. Models that forecast natively over their own series
// produce the whole horizon in one call.
func (f *Forecaster) Forecast(cleaned *contracts.CleanedTable, ft *contracts.FeatureTable, model *contracts.TrainedModel, opts contracts.ForecastOptions) (*contracts.Forecast, error) {
	if opts.Horizon < 1 {
		return nil, contracts.Validationf(stage, "horizon %d is not positive", opts.Horizon)
	}
	if model == nil || model.Predictor == nil {
		return nil, contracts.NotFoundf(stage, "no trained model available")
	}
	if model.FeatureVersion != ft.Version {
		return nil, contracts.Validationf(stage, "model was trained on a stale feature table")
	}

	points := f.pointEstimates(cleaned, ft, model, opts.Horizon)

	z := zScore(opts.Confidence)
	margin := z * model.ResidualStd
	lastDate := cleaned.Dates[len(cleaned.Dates)-1]

	fc := &contracts.Forecast{
		SessionID:      cleaned.SessionID,
		Kind:           model.Kind,
		FeatureVersion: ft.Version,
		Horizon:        opts.Horizon,
		Confidence:     opts.Confidence,
		GeneratedAt:    time.Now().UTC(),
	}

	for h, point := range points {
		point = math.Max(0, point)
		fc.Points = append(fc.Points, contracts.ForecastPoint{
			Date:  lastDate.AddDate(0, 0, h+1),
			Point: point,
			Lower: math.Max(0, point-margin),
			Upper: point + margin,
		})
	}

	fc.Summary = summarize(fc.Points)

	f.log.WithField("session", cleaned.SessionID).
		WithField("kind", model.Kind).
		WithField("horizon", opts.Horizon).
		Info("forecast generated")

	return fc, nil
}

// pointEstimates produces the raw horizon values before clamping.
func (f *Forecaster) pointEstimates(cleaned *contracts.CleanedTable, ft *contracts.FeatureTable, model *contracts.TrainedModel, horizon int) []float64 {
	if native, ok := model.Predictor.Forecast(horizon); ok {
		return native
	}

	builder := features.NewRowBuilder(cleaned.Columns, ft.Options, f.holidays, f.weather)
	history := append([]float64(nil), cleaned.Demand...)
	base := cleaned.Rows[len(cleaned.Rows)-1]
	lastDate := cleaned.Dates[len(cleaned.Dates)-1]

	points := make([]float64, 0, horizon)
	for h := 1; h <= horizon; h++ {
		date := lastDate.AddDate(0, 0, h)
		trendIdx := len(cleaned.Demand) + h - 1
		row := builder.Build(history, trendIdx, date, base)
		point := model.Predictor.Predict(row)
		points = append(points, point)
		history = append(history, math.Max(0, point))
	}
	return points
}

// zScore maps a two-sided confidence level to its normal quantile.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.989:
		return 2.576
	case confidence >= 0.949:
		return 1.960
	case confidence >= 0.899:
		return 1.645
	case confidence >= 0.799:
		return 1.282
	default:
		return 1.960
	}
}

// summarize aggregates the horizon for reporting. The trend label compares
// the second half of the horizon to the first, with a 5% dead band.
func summarize(points []contracts.ForecastPoint) contracts.ForecastSummary {
	s := contracts.ForecastSummary{
		PeakValue: math.Inf(-1),
		LowValue:  math.Inf(1),
	}
	for _, p := range points {
		s.Total += p.Point
		if p.Point > s.PeakValue {
			s.PeakValue = p.Point
			s.PeakDate = p.Date
		}
		if p.Point < s.LowValue {
			s.LowValue = p.Point
			s.LowDate = p.Date
		}
	}
	s.DailyMean = s.Total / float64(len(points))

	half := len(points) / 2
	if half == 0 {
		s.Trend = "stable"
		return s
	}
	firstMean := 0.0
	for _, p := range points[:half] {
		firstMean += p.Point
	}
	firstMean /= float64(half)
	secondMean := 0.0
	for _, p := range points[half:] {
		secondMean += p.Point
	}
	secondMean /= float64(len(points) - half)

	switch {
	case firstMean > 0 && secondMean > firstMean*1.05:
		s.Trend = "increasing"
	case firstMean > 0 && secondMean < firstMean*0.95:
		s.Trend = "decreasing"
	default:
		s.Trend = "stable"
	}
	return s
}
