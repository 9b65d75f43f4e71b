package features

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "features"

// Engineer derives the model-ready feature matrix from a cleaned table.
type Engineer struct {
	log      *logger.Logger
	holidays HolidaySource
	weather  WeatherSource
}

// NewEngineer creates an Engineer. Either source may be nil; the matching
// columns then carry the neutral fill with the presence flag cleared.
func NewEngineer(log *logger.Logger, holidays HolidaySource, weather WeatherSource) *Engineer {
	return &Engineer{
		log:      log.WithComponent("feature-engineer"),
		holidays: holidays,
		weather:  weather,
	}
}

// Build computes the feature table. Rows without enough demand history for
// the longest lag or window are dropped rather than padded, so every feature
// value comes from real prior observations.
func (e *Engineer) Build(cleaned *contracts.CleanedTable, opts contracts.FeatureOptions) (*contracts.FeatureTable, error) {
	if cleaned == nil || len(cleaned.Demand) == 0 {
		return nil, contracts.Validationf(stage, "cleaned table is empty")
	}
	if len(opts.Lags) == 0 {
		return nil, contracts.Validationf(stage, "at least one lag is required")
	}
	for _, lag := range opts.Lags {
		if lag < 1 {
			return nil, contracts.Validationf(stage, "lag %d is not positive", lag)
		}
	}
	for _, w := range opts.Windows {
		if w < 2 {
			return nil, contracts.Validationf(stage, "window %d is too small", w)
		}
	}

	builder := NewRowBuilder(cleaned.Columns, opts, e.holidays, e.weather)
	lookback := builder.MinHistory()

	table := &contracts.FeatureTable{
		SessionID:   cleaned.SessionID,
		BaseVersion: cleaned.Version,
		Columns:     builder.Columns(),
		Options:     opts,
		DroppedRows: lookback,
		BuiltAt:     time.Now().UTC(),
	}

	for i := lookback; i < len(cleaned.Demand); i++ {
		row := builder.Build(cleaned.Demand[:i], i, cleaned.Dates[i], cleaned.Rows[i])
		table.Rows = append(table.Rows, row)
		table.Dates = append(table.Dates, cleaned.Dates[i])
		table.Target = append(table.Target, cleaned.Demand[i])
	}

	if len(table.Rows) == 0 {
		return nil, contracts.Validationf(stage,
			"no rows left after dropping %d rows of warm-up history", lookback)
	}

	table.Version = featureFingerprint(table)

	e.log.WithField("session", cleaned.SessionID).
		WithField("rows", len(table.Rows)).
		WithField("columns", len(table.Columns)).
		Info("feature table built")

	return table, nil
}

func featureFingerprint(t *contracts.FeatureTable) int64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	write(uint64(t.BaseVersion))
	for _, c := range t.Columns {
		h.Write([]byte(c))
	}
	for i := range t.Rows {
		write(math.Float64bits(t.Target[i]))
		for _, v := range t.Rows[i] {
			write(math.Float64bits(v))
		}
	}
	return int64(h.Sum64() & math.MaxInt64)
}
