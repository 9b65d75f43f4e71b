package preprocess

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

func day(offset int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func dataset(records []contracts.RawRecord) *contracts.Dataset {
	return &contracts.Dataset{SessionID: "s1", Records: records, Version: 1}
}

func record(offset int, qty, price float64) contracts.RawRecord {
	return contracts.RawRecord{
		Date:      day(offset),
		ProductID: "sku-1",
		Quantity:  qty,
		UnitPrice: price,
		Store:     "mapo",
		Segment:   "retail",
	}
}

func TestCleanAggregatesDaily(t *testing.T) {
	records := []contracts.RawRecord{
		record(0, 5, 10),
		record(0, 7, 20),
	}
	for i := 1; i < 12; i++ {
		records = append(records, record(i, 10, 15))
	}

	opts := contracts.DefaultCleanOptions()
	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), opts)
	require.NoError(t, err)

	assert.Len(t, table.Dates, 12, "two same-day records collapse into one row")
	assert.Equal(t, 12.0, table.Demand[0], "daily demand is summed")
	assert.Equal(t, 13, table.InputRows)

	// Same-day prices average before scaling.
	priceIdx := table.ColumnIndex(ColUnitPrice)
	require.GreaterOrEqual(t, priceIdx, 0)
	params := table.Scalers[ColUnitPrice]
	assert.InDelta(t, 15.0, table.Rows[0][priceIdx]*params.StdDev+params.Mean, 1e-9)
}

func TestCleanAveragesSameDayPrices(t *testing.T) {
	records := []contracts.RawRecord{
		record(0, 3, 1),
		record(0, 3, 1),
		record(0, 4, 4),
		record(1, 5, math.NaN()),
		record(1, 5, 6),
	}
	for i := 2; i < 12; i++ {
		records = append(records, record(i, 10, 2))
	}

	opts := contracts.DefaultCleanOptions()
	opts.ScaleNumeric = false

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), opts)
	require.NoError(t, err)

	priceIdx := table.ColumnIndex(ColUnitPrice)
	require.GreaterOrEqual(t, priceIdx, 0)

	// Every priced transaction weighs the same, regardless of order.
	assert.InDelta(t, 2.0, table.Rows[0][priceIdx], 1e-9)
	// Unpriced transactions stay out of the day's denominator.
	assert.InDelta(t, 6.0, table.Rows[1][priceIdx], 1e-9)
	assert.InDelta(t, 2.0, table.Rows[2][priceIdx], 1e-9)
}

func TestCleanSortsChronologically(t *testing.T) {
	var records []contracts.RawRecord
	for i := 11; i >= 0; i-- {
		records = append(records, record(i, float64(i), 10))
	}

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	for i := 1; i < len(table.Dates); i++ {
		assert.True(t, table.Dates[i].After(table.Dates[i-1]))
	}
}

func TestCleanImputesMedianDemand(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 11; i++ {
		qty := float64(i + 1)
		if i == 5 {
			qty = math.NaN()
		}
		records = append(records, record(i, qty, 2))
	}

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	// Known values 1..5,7..11; the empirical median is 5.
	assert.Equal(t, 5.0, table.Demand[5])
	assert.Equal(t, 1, table.ImputedValues)
}

func TestCleanDropsOutlierDays(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 14; i++ {
		records = append(records, record(i, 10, 5))
	}
	records = append(records, record(14, 500, 5))

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, table.DroppedRows)
	assert.Len(t, table.Demand, 14)
	for _, d := range table.Demand {
		assert.Equal(t, 10.0, d)
	}
}

func TestCleanKeepsOutliersWhenDisabled(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 14; i++ {
		records = append(records, record(i, 10, 5))
	}
	records = append(records, record(14, 500, 5))

	opts := contracts.DefaultCleanOptions()
	opts.DropOutliers = false

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, table.DroppedRows)
	assert.Len(t, table.Demand, 15)
	assert.Equal(t, 500.0, table.Demand[14])
}

func TestCleanRejectsTooFewRows(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 5; i++ {
		records = append(records, record(i, 10, 5))
	}

	_, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestCleanRejectsEmptyDataset(t *testing.T) {
	_, err := NewCleaner(logger.Nop()).Clean(dataset(nil), contracts.DefaultCleanOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestCleanRejectsRecordWithoutDate(t *testing.T) {
	records := []contracts.RawRecord{{Quantity: 10, UnitPrice: 5}}

	_, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestCleanEncodesCategoriesFirstSeen(t *testing.T) {
	stores := []string{"gangnam", "mapo", "gangnam", "jongno"}
	var records []contracts.RawRecord
	for i := 0; i < 12; i++ {
		r := record(i, 10, 5)
		r.Store = stores[i%len(stores)]
		records = append(records, r)
	}

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	enc := table.Encoders[ColStoreCode]
	require.NotNil(t, enc)
	assert.Equal(t, []string{"gangnam", "mapo", "jongno"}, enc.Labels)

	storeIdx := table.ColumnIndex(ColStoreCode)
	require.GreaterOrEqual(t, storeIdx, 0)
	assert.Equal(t, 0.0, table.Rows[0][storeIdx])
	assert.Equal(t, 1.0, table.Rows[1][storeIdx])
	assert.Equal(t, 0.0, table.Rows[2][storeIdx])
	assert.Equal(t, 2.0, table.Rows[3][storeIdx])
}

func TestCleanFillsMissingCategoryLabel(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 12; i++ {
		r := record(i, 10, 5)
		r.Store = ""
		records = append(records, r)
	}

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"unknown"}, table.Encoders[ColStoreCode].Labels)
}

func TestCleanScalesPrices(t *testing.T) {
	prices := []float64{10, 20, 30}
	var records []contracts.RawRecord
	for i := 0; i < 3; i++ {
		records = append(records, record(i, 5, prices[i]))
	}

	opts := contracts.DefaultCleanOptions()
	opts.MinRows = 3

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), opts)
	require.NoError(t, err)

	params := table.Scalers[ColUnitPrice]
	assert.InDelta(t, 20, params.Mean, 1e-9)
	assert.InDelta(t, 10, params.StdDev, 1e-9)

	priceIdx := table.ColumnIndex(ColUnitPrice)
	assert.InDelta(t, -1, table.Rows[0][priceIdx], 1e-9)
	assert.InDelta(t, 0, table.Rows[1][priceIdx], 1e-9)
	assert.InDelta(t, 1, table.Rows[2][priceIdx], 1e-9)

	assert.InDelta(t, 1.5, ApplyScaler(35, params), 1e-9)
}

func TestCleanConstantPriceScalesToZero(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 12; i++ {
		records = append(records, record(i, 10, 7.5))
	}

	table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	params := table.Scalers[ColUnitPrice]
	assert.Equal(t, 1.0, params.StdDev, "constant column keeps unit spread")

	priceIdx := table.ColumnIndex(ColUnitPrice)
	for _, row := range table.Rows {
		assert.InDelta(t, 0, row[priceIdx], 1e-9)
	}
}

func TestCleanVersionIsDeterministic(t *testing.T) {
	build := func() *contracts.CleanedTable {
		var records []contracts.RawRecord
		for i := 0; i < 15; i++ {
			records = append(records, record(i, float64(10+i%3), 5))
		}
		table, err := NewCleaner(logger.Nop()).Clean(dataset(records), contracts.DefaultCleanOptions())
		require.NoError(t, err)
		return table
	}

	a, b := build(), build()
	assert.Equal(t, a.Version, b.Version)
	assert.Equal(t, a.Demand, b.Demand)
}

func TestCleanVersionTracksContent(t *testing.T) {
	var records []contracts.RawRecord
	for i := 0; i < 15; i++ {
		records = append(records, record(i, 10, 5))
	}

	cleaner := NewCleaner(logger.Nop())
	a, err := cleaner.Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	records[3].Quantity = 11
	b, err := cleaner.Clean(dataset(records), contracts.DefaultCleanOptions())
	require.NoError(t, err)

	assert.NotEqual(t, a.Version, b.Version)
}
