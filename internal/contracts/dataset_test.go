package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecordMissingValuesSurviveJSON(t *testing.T) {
	rec := RawRecord{
		Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ProductID: "sku-1",
		Quantity:  math.NaN(),
		UnitPrice: 9.99,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quantity":null`)

	var back RawRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.Quantity))
	assert.InDelta(t, 9.99, back.UnitPrice, 1e-9)
	assert.Equal(t, rec.Date, back.Date)
	assert.Equal(t, "sku-1", back.ProductID)
}

func TestRawRecordAbsentNumericsDecodeAsMissing(t *testing.T) {
	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-03-01T00:00:00Z"}`), &rec))

	assert.True(t, math.IsNaN(rec.Quantity))
	assert.True(t, math.IsNaN(rec.UnitPrice))
}
