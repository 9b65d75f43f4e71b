package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

func cleanedSeries(n int) *contracts.CleanedTable {
	t := &contracts.CleanedTable{
		SessionID: "s1",
		Version:   77,
		Rows:      make([][]float64, n),
	}
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		t.Dates = append(t.Dates, start.AddDate(0, 0, i))
		t.Demand = append(t.Demand, float64(i))
	}
	return t
}

func testFeatureOptions() contracts.FeatureOptions {
	return contracts.FeatureOptions{
		Lags:     []int{1, 7},
		Windows:  []int{7},
		Calendar: true,
		Trend:    true,
		Holidays: true,
	}
}

func TestBuildDropsWarmupRows(t *testing.T) {
	cleaned := cleanedSeries(40)
	eng := NewEngineer(logger.Nop(), nil, nil)

	ft, err := eng.Build(cleaned, testFeatureOptions())
	require.NoError(t, err)

	assert.Len(t, ft.Rows, 33)
	assert.Equal(t, 7, ft.DroppedRows)
	assert.Equal(t, cleaned.Dates[7], ft.Dates[0])
	assert.Equal(t, cleaned.Version, ft.BaseVersion)
}

func TestBuildLagAndRollingValues(t *testing.T) {
	cleaned := cleanedSeries(40)
	eng := NewEngineer(logger.Nop(), nil, nil)

	ft, err := eng.Build(cleaned, testFeatureOptions())
	require.NoError(t, err)

	// First surviving row is the observation at index 7, demand 7.
	assert.Equal(t, 7.0, ft.Target[0])

	row := ft.Rows[0]
	assert.Equal(t, 6.0, row[ft.ColumnIndex("demand_lag_1")])
	assert.Equal(t, 0.0, row[ft.ColumnIndex("demand_lag_7")])

	// Rolling stats cover indices 0..6 only, never the target itself.
	assert.InDelta(t, 3.0, row[ft.ColumnIndex("demand_ma_7")], 1e-9)
	assert.InDelta(t, math.Sqrt(28.0/6.0), row[ft.ColumnIndex("demand_std_7")], 1e-9)

	assert.Equal(t, 7.0, row[ft.ColumnIndex(ColTrend)])
	assert.Equal(t, 49.0, row[ft.ColumnIndex(ColTrendSq)])
}

func TestBuildCalendarColumns(t *testing.T) {
	cleaned := cleanedSeries(40)
	eng := NewEngineer(logger.Nop(), nil, nil)

	ft, err := eng.Build(cleaned, testFeatureOptions())
	require.NoError(t, err)

	for i, row := range ft.Rows {
		date := ft.Dates[i]
		assert.Equal(t, float64(date.Weekday()), row[ft.ColumnIndex(ColDayOfWeek)])
		assert.Equal(t, float64(date.Day()), row[ft.ColumnIndex(ColDayOfMonth)])

		weekend := 0.0
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			weekend = 1
		}
		assert.Equal(t, weekend, row[ft.ColumnIndex(ColIsWeekend)])
	}
}

type stubHolidays struct {
	known    map[string]bool
	holidays map[string]bool
}

func (s stubHolidays) IsHoliday(date time.Time) (bool, bool) {
	key := date.Format("2006-01-02")
	return s.holidays[key], s.known[key]
}

func TestBuildHolidayJoin(t *testing.T) {
	cleaned := cleanedSeries(40)
	holidayDate := cleaned.Dates[10].Format("2006-01-02")
	workDate := cleaned.Dates[11].Format("2006-01-02")

	src := stubHolidays{
		known:    map[string]bool{holidayDate: true, workDate: true},
		holidays: map[string]bool{holidayDate: true},
	}
	eng := NewEngineer(logger.Nop(), src, nil)

	ft, err := eng.Build(cleaned, testFeatureOptions())
	require.NoError(t, err)

	isHol := ft.ColumnIndex(ColIsHoliday)
	known := ft.ColumnIndex(ColHolidayKnown)

	// Row 3 is the observation at cleaned index 10.
	assert.Equal(t, 1.0, ft.Rows[3][isHol])
	assert.Equal(t, 1.0, ft.Rows[3][known])
	assert.Equal(t, 0.0, ft.Rows[4][isHol])
	assert.Equal(t, 1.0, ft.Rows[4][known])

	// Dates the source has never seen fall back to the neutral fill.
	assert.Equal(t, 0.0, ft.Rows[0][isHol])
	assert.Equal(t, 0.0, ft.Rows[0][known])
}

func TestBuildWeatherWithoutSource(t *testing.T) {
	cleaned := cleanedSeries(40)
	opts := testFeatureOptions()
	opts.Weather = true
	opts.NeutralExogFill = 0

	ft, err := NewEngineer(logger.Nop(), nil, nil).Build(cleaned, opts)
	require.NoError(t, err)

	for _, row := range ft.Rows {
		assert.Equal(t, 0.0, row[ft.ColumnIndex(ColTempC)])
		assert.Equal(t, 0.0, row[ft.ColumnIndex(ColPrecipMM)])
		assert.Equal(t, 0.0, row[ft.ColumnIndex(ColWeatherKnown)])
	}
}

func TestBuildValidation(t *testing.T) {
	eng := NewEngineer(logger.Nop(), nil, nil)

	_, err := eng.Build(&contracts.CleanedTable{}, testFeatureOptions())
	assert.True(t, errors.Is(err, contracts.ErrValidation), "empty table")

	opts := testFeatureOptions()
	opts.Lags = nil
	_, err = eng.Build(cleanedSeries(40), opts)
	assert.True(t, errors.Is(err, contracts.ErrValidation), "no lags")

	opts = testFeatureOptions()
	opts.Lags = []int{0}
	_, err = eng.Build(cleanedSeries(40), opts)
	assert.True(t, errors.Is(err, contracts.ErrValidation), "non-positive lag")

	opts = testFeatureOptions()
	opts.Windows = []int{1}
	_, err = eng.Build(cleanedSeries(40), opts)
	assert.True(t, errors.Is(err, contracts.ErrValidation), "window too small")
}

func TestBuildRejectsSeriesShorterThanLookback(t *testing.T) {
	_, err := NewEngineer(logger.Nop(), nil, nil).Build(cleanedSeries(7), testFeatureOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestBuildVersionIsDeterministic(t *testing.T) {
	eng := NewEngineer(logger.Nop(), nil, nil)

	a, err := eng.Build(cleanedSeries(40), testFeatureOptions())
	require.NoError(t, err)
	b, err := eng.Build(cleanedSeries(40), testFeatureOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Version, b.Version)
}
