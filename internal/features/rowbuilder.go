package features

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/demandcast/internal/contracts"
)

// HolidaySource reports whether a date is a public holiday. known is false
// when the source has no data for the date.
type HolidaySource interface {
	IsHoliday(date time.Time) (holiday bool, known bool)
}

// WeatherSource reports daily weather for a date. ok is false when the source
// has no data for the date.
type WeatherSource interface {
	Weather(date time.Time) (tempC, precipMM float64, ok bool)
}

// Feature column names derived from the demand series and calendar.
const (
	ColDayOfWeek    = "day_of_week"
	ColDayOfMonth   = "day_of_month"
	ColMonth        = "month"
	ColIsWeekend    = "is_weekend"
	ColDowSin       = "dow_sin"
	ColDowCos       = "dow_cos"
	ColMonthSin     = "month_sin"
	ColMonthCos     = "month_cos"
	ColTrend        = "trend"
	ColTrendSq      = "trend_sq"
	ColIsHoliday    = "is_holiday"
	ColHolidayKnown = "holiday_known"
	ColTempC        = "temp_c"
	ColPrecipMM     = "precip_mm"
	ColWeatherKnown = "weather_known"
)

// RowBuilder computes one feature row from demand history and a date. The
// training stage and the forecaster share this type so a future row is built
// with exactly the arithmetic the model was fitted on.
type RowBuilder struct {
	columns  []string
	base     []string
	opts     contracts.FeatureOptions
	holidays HolidaySource
	weather  WeatherSource
}

// NewRowBuilder derives the feature column layout from the cleaned table's
// base columns and the feature options.
func NewRowBuilder(baseColumns []string, opts contracts.FeatureOptions, holidays HolidaySource, weather WeatherSource) *RowBuilder {
	b := &RowBuilder{
		base:     append([]string(nil), baseColumns...),
		opts:     opts,
		holidays: holidays,
		weather:  weather,
	}

	b.columns = append(b.columns, baseColumns...)
	for _, lag := range opts.Lags {
		b.columns = append(b.columns, fmt.Sprintf("demand_lag_%d", lag))
	}
	for _, w := range opts.Windows {
		b.columns = append(b.columns, fmt.Sprintf("demand_ma_%d", w))
		b.columns = append(b.columns, fmt.Sprintf("demand_std_%d", w))
	}
	if opts.Calendar {
		b.columns = append(b.columns, ColDayOfWeek, ColDayOfMonth, ColMonth, ColIsWeekend)
	}
	if opts.Seasonal {
		b.columns = append(b.columns, ColDowSin, ColDowCos, ColMonthSin, ColMonthCos)
	}
	if opts.Trend {
		b.columns = append(b.columns, ColTrend, ColTrendSq)
	}
	if opts.Holidays {
		b.columns = append(b.columns, ColIsHoliday, ColHolidayKnown)
	}
	if opts.Weather {
		b.columns = append(b.columns, ColTempC, ColPrecipMM, ColWeatherKnown)
	}
	return b
}

// Columns returns the feature column names in row order.
func (b *RowBuilder) Columns() []string {
	return b.columns
}

// Build computes the feature row for the observation at trendIdx on date.
// history holds every demand value strictly before that observation, so no
// feature can see the value being predicted. base carries the cleaned base
// column values for the row.
func (b *RowBuilder) Build(history []float64, trendIdx int, date time.Time, base []float64) []float64 {
	row := make([]float64, 0, len(b.columns))
	row = append(row, base...)

	n := len(history)
	for _, lag := range b.opts.Lags {
		row = append(row, history[n-lag])
	}
	for _, w := range b.opts.Windows {
		window := history[n-w:]
		mean, std := stat.MeanStdDev(window, nil)
		if math.IsNaN(std) {
			std = 0
		}
		row = append(row, mean, std)
	}

	if b.opts.Calendar {
		dow := float64(date.Weekday())
		weekend := 0.0
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			weekend = 1
		}
		row = append(row, dow, float64(date.Day()), float64(date.Month()), weekend)
	}

	if b.opts.Seasonal {
		dow := float64(date.Weekday())
		month := float64(date.Month())
		row = append(row,
			math.Sin(2*math.Pi*dow/7), math.Cos(2*math.Pi*dow/7),
			math.Sin(2*math.Pi*month/12), math.Cos(2*math.Pi*month/12),
		)
	}

	if b.opts.Trend {
		t := float64(trendIdx)
		row = append(row, t, t*t)
	}

	if b.opts.Holidays {
		row = append(row, b.holidayFeatures(date)...)
	}

	if b.opts.Weather {
		row = append(row, b.weatherFeatures(date)...)
	}

	return row
}

// holidayFeatures left-joins the holiday source: unknown dates get the
// neutral value with the presence flag cleared.
func (b *RowBuilder) holidayFeatures(date time.Time) []float64 {
	if b.holidays == nil {
		return []float64{b.opts.NeutralExogFill, 0}
	}
	holiday, known := b.holidays.IsHoliday(date)
	if !known {
		return []float64{b.opts.NeutralExogFill, 0}
	}
	v := 0.0
	if holiday {
		v = 1
	}
	return []float64{v, 1}
}

// weatherFeatures left-joins the weather source with the same convention.
func (b *RowBuilder) weatherFeatures(date time.Time) []float64 {
	if b.weather == nil {
		return []float64{b.opts.NeutralExogFill, b.opts.NeutralExogFill, 0}
	}
	temp, precip, ok := b.weather.Weather(date)
	if !ok {
		return []float64{b.opts.NeutralExogFill, b.opts.NeutralExogFill, 0}
	}
	return []float64{temp, precip, 1}
}

// MinHistory reports how many prior observations Build needs.
func (b *RowBuilder) MinHistory() int {
	return b.opts.MaxLookback()
}
