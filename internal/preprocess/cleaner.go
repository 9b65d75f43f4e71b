package preprocess

import (
	"hash/fnv"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "preprocess"

// Column names produced by the cleaner.
const (
	ColUnitPrice   = "unit_price"
	ColStoreCode   = "store_code"
	ColSegmentCode = "segment_code"
)

// Cleaner turns raw uploaded records into a chronologically ordered daily
// demand table with imputed values, encoded categories and standardized
// numeric columns.
type Cleaner struct {
	log *logger.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(log *logger.Logger) *Cleaner {
	return &Cleaner{log: log.WithComponent("cleaner")}
}

// dailyRow is one aggregated day before encoding and scaling.
type dailyRow struct {
	date    time.Time
	demand  float64
	price   float64
	store   string
	segment string
}

// Clean builds a CleanedTable from records. The same records and options
// always produce the same table.
func (c *Cleaner) Clean(ds *contracts.Dataset, opts contracts.CleanOptions) (*contracts.CleanedTable, error) {
	if ds == nil || len(ds.Records) == 0 {
		return nil, contracts.Validationf(stage, "dataset is empty")
	}

	records := make([]contracts.RawRecord, 0, len(ds.Records))
	for _, r := range ds.Records {
		if r.Date.IsZero() {
			return nil, contracts.Validationf(stage, "record without date")
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	days := aggregate(records, opts)

	imputed := imputeMissing(days, opts)

	dropped := 0
	if opts.DropOutliers {
		days, dropped = dropOutliers(days, opts.IQRMultiplier)
	}

	if len(days) < opts.MinRows {
		return nil, contracts.Validationf(stage,
			"%d rows after cleaning, need at least %d", len(days), opts.MinRows)
	}

	table := &contracts.CleanedTable{
		SessionID:      ds.SessionID,
		DatasetVersion: ds.Version,
		Columns:        []string{ColUnitPrice, ColStoreCode, ColSegmentCode},
		Scalers:        make(map[string]contracts.ScaleParams),
		Encoders: map[string]*contracts.CategoryEncoder{
			ColStoreCode:   {},
			ColSegmentCode: {},
		},
		Options:       opts,
		InputRows:     len(ds.Records),
		DroppedRows:   dropped,
		ImputedValues: imputed,
		BuiltAt:       time.Now().UTC(),
	}

	prices := make([]float64, len(days))
	for i, d := range days {
		table.Dates = append(table.Dates, d.date)
		table.Demand = append(table.Demand, d.demand)
		prices[i] = d.price
	}

	if opts.ScaleNumeric {
		params := fitScaler(prices)
		table.Scalers[ColUnitPrice] = params
		for i := range prices {
			prices[i] = applyScaler(prices[i], params)
		}
	}

	for i, d := range days {
		row := []float64{
			prices[i],
			float64(table.Encoders[ColStoreCode].Code(d.store)),
			float64(table.Encoders[ColSegmentCode].Code(d.segment)),
		}
		table.Rows = append(table.Rows, row)
	}

	table.Version = fingerprint(table)

	c.log.WithField("session", ds.SessionID).WithField("rows", len(table.Rows)).
		WithField("dropped", dropped).WithField("imputed", imputed).
		Info("dataset cleaned")

	return table, nil
}

// aggregate collapses transactions into one row per day: demand is summed,
// price is the arithmetic mean over the day's priced transactions,
// categorical values are taken from the first record of the day. When
// aggregation is disabled each record keeps its own row.
func aggregate(records []contracts.RawRecord, opts contracts.CleanOptions) []dailyRow {
	toRow := func(r contracts.RawRecord) dailyRow {
		return dailyRow{
			date:    r.Date.Truncate(24 * time.Hour),
			demand:  r.Quantity,
			price:   r.UnitPrice,
			store:   labelOr(r.Store, opts.UnknownLabel),
			segment: labelOr(r.Segment, opts.UnknownLabel),
		}
	}

	if !opts.AggregateDaily {
		rows := make([]dailyRow, len(records))
		for i, r := range records {
			rows[i] = toRow(r)
		}
		return rows
	}

	var rows []dailyRow
	var priced []int
	for _, r := range records {
		day := toRow(r)
		if n := len(rows); n > 0 && rows[n-1].date.Equal(day.date) {
			last := &rows[n-1]
			last.demand = addSkipNaN(last.demand, day.demand)
			if !math.IsNaN(day.price) {
				last.price = addSkipNaN(last.price, day.price)
				priced[n-1]++
			}
			continue
		}
		rows = append(rows, day)
		n := 0
		if !math.IsNaN(day.price) {
			n = 1
		}
		priced = append(priced, n)
	}
	for i, n := range priced {
		if n > 1 {
			rows[i].price /= float64(n)
		}
	}
	return rows
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

// addSkipNaN sums two values treating NaN as absent.
func addSkipNaN(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return a + b
	}
}

// imputeMissing replaces NaN demand and price with the column median and
// returns how many values were filled.
func imputeMissing(days []dailyRow, opts contracts.CleanOptions) int {
	demandMed := medianOf(days, func(d dailyRow) float64 { return d.demand })
	priceMed := medianOf(days, func(d dailyRow) float64 { return d.price })

	imputed := 0
	for i := range days {
		if math.IsNaN(days[i].demand) {
			days[i].demand = demandMed
			imputed++
		}
		if math.IsNaN(days[i].price) {
			days[i].price = priceMed
			imputed++
		}
	}
	return imputed
}

func medianOf(days []dailyRow, get func(dailyRow) float64) float64 {
	vals := make([]float64, 0, len(days))
	for _, d := range days {
		if v := get(d); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

// dropOutliers removes rows whose demand falls outside the IQR fences. The
// fences are computed once from the full series, not recomputed while
// dropping.
func dropOutliers(days []dailyRow, multiplier float64) ([]dailyRow, int) {
	vals := make([]float64, len(days))
	for i, d := range days {
		vals[i] = d.demand
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lo := q1 - multiplier*iqr
	hi := q3 + multiplier*iqr

	kept := days[:0]
	dropped := 0
	for _, d := range days {
		if d.demand < lo || d.demand > hi {
			dropped++
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}

// fitScaler computes standardization parameters for one column. A constant
// column keeps StdDev 1 so scaling maps it to zero instead of NaN.
func fitScaler(vals []float64) contracts.ScaleParams {
	mean, std := stat.MeanStdDev(vals, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return contracts.ScaleParams{Mean: mean, StdDev: std}
}

func applyScaler(v float64, p contracts.ScaleParams) float64 {
	return (v - p.Mean) / p.StdDev
}

// ApplyScaler standardizes a value with previously fitted parameters.
func ApplyScaler(v float64, p contracts.ScaleParams) float64 {
	return applyScaler(v, p)
}

// fingerprint derives a deterministic version from the table contents so
// rebuilding from identical input yields an identical version.
func fingerprint(t *contracts.CleanedTable) int64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	write(uint64(t.DatasetVersion))
	for i, d := range t.Dates {
		write(uint64(d.Unix()))
		write(math.Float64bits(t.Demand[i]))
		for _, v := range t.Rows[i] {
			write(math.Float64bits(v))
		}
	}
	return int64(h.Sum64() & math.MaxInt64)
}
