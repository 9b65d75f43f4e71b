package contracts

import "time"

// ScaleParams holds the mean and standard deviation used to standardize one
// numeric column. The same parameters must be applied to any future value of
// that column, so they travel with the table.
type ScaleParams struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// CategoryEncoder maps category labels to integer codes in first-seen order.
type CategoryEncoder struct {
	Codes  map[string]int `json:"codes"`
	Labels []string       `json:"labels"`
}

// Code returns the integer code for label, assigning the next code when the
// label has not been seen before.
func (e *CategoryEncoder) Code(label string) int {
	if e.Codes == nil {
		e.Codes = make(map[string]int)
	}
	if c, ok := e.Codes[label]; ok {
		return c
	}
	c := len(e.Labels)
	e.Codes[label] = c
	e.Labels = append(e.Labels, label)
	return c
}

// CleanOptions controls the cleaning stage.
type CleanOptions struct {
	MinRows        int     `json:"min_rows"`
	IQRMultiplier  float64 `json:"iqr_multiplier"`
	ScaleNumeric   bool    `json:"scale_numeric"`
	DropOutliers   bool    `json:"drop_outliers"`
	UnknownLabel   string  `json:"unknown_label"`
	AggregateDaily bool    `json:"aggregate_daily"`
}

// DefaultCleanOptions returns the cleaning defaults.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		MinRows:        10,
		IQRMultiplier:  1.5,
		ScaleNumeric:   true,
		DropOutliers:   true,
		UnknownLabel:   "unknown",
		AggregateDaily: true,
	}
}

// CleanedTable is a chronologically ordered daily demand series with encoded
// categorical columns and standardized numeric columns. Demand stays in its
// original unit so downstream stages can derive lag features from it.
type CleanedTable struct {
	SessionID      string                      `json:"session_id"`
	Version        int64                       `json:"version"`
	DatasetVersion int64                       `json:"dataset_version"`
	Dates          []time.Time                 `json:"dates"`
	Demand         []float64                   `json:"demand"`
	Columns        []string                    `json:"columns"`
	Rows           [][]float64                 `json:"rows"`
	Scalers        map[string]ScaleParams      `json:"scalers"`
	Encoders       map[string]*CategoryEncoder `json:"encoders"`
	Options        CleanOptions                `json:"options"`
	InputRows      int                         `json:"input_rows"`
	DroppedRows    int                         `json:"dropped_rows"`
	ImputedValues  int                         `json:"imputed_values"`
	BuiltAt        time.Time                   `json:"built_at"`
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *CleanedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FeatureOptions controls the feature engineering stage.
type FeatureOptions struct {
	Lags            []int   `json:"lags"`
	Windows         []int   `json:"windows"`
	Calendar        bool    `json:"calendar"`
	Seasonal        bool    `json:"seasonal"`
	Trend           bool    `json:"trend"`
	Holidays        bool    `json:"holidays"`
	Weather         bool    `json:"weather"`
	NeutralExogFill float64 `json:"neutral_exog_fill"`
}

// DefaultFeatureOptions returns the feature defaults.
func DefaultFeatureOptions() FeatureOptions {
	return FeatureOptions{
		Lags:     []int{1, 7, 14},
		Windows:  []int{7, 14, 30},
		Calendar: true,
		Seasonal: true,
		Trend:    true,
		Holidays: true,
		Weather:  true,
	}
}

// MaxLookback reports the longest history any configured feature needs.
func (o FeatureOptions) MaxLookback() int {
	max := 0
	for _, l := range o.Lags {
		if l > max {
			max = l
		}
	}
	for _, w := range o.Windows {
		if w > max {
			max = w
		}
	}
	return max
}

// FeatureTable is the model-ready matrix. Row i corresponds to Dates[i] and
// Target[i]; every feature in Rows[i] is computed from strictly earlier
// observations or from the calendar, never from Target[i] itself.
type FeatureTable struct {
	SessionID   string         `json:"session_id"`
	Version     int64          `json:"version"`
	BaseVersion int64          `json:"base_version"`
	Dates       []time.Time    `json:"dates"`
	Target      []float64      `json:"target"`
	Columns     []string       `json:"columns"`
	Rows        [][]float64    `json:"rows"`
	Options     FeatureOptions `json:"options"`
	DroppedRows int            `json:"dropped_rows"`
	BuiltAt     time.Time      `json:"built_at"`
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *FeatureTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
