package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// RawRecord is a single uploaded sales observation. Quantity and UnitPrice
// use NaN to represent a missing value so the cleaning stage can impute.
type RawRecord struct {
	Date      time.Time `json:"date" validate:"required"`
	ProductID string    `json:"product_id"`
	Quantity  float64   `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Store     string    `json:"store"`
	Segment   string    `json:"segment"`
}

// rawRecordJSON mirrors RawRecord with nullable numerics. JSON cannot encode
// NaN, so a missing value travels as null and comes back as NaN.
type rawRecordJSON struct {
	Date      time.Time `json:"date"`
	ProductID string    `json:"product_id,omitempty"`
	Quantity  *float64  `json:"quantity"`
	UnitPrice *float64  `json:"unit_price"`
	Store     string    `json:"store,omitempty"`
	Segment   string    `json:"segment,omitempty"`
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	out := rawRecordJSON{
		Date:      r.Date,
		ProductID: r.ProductID,
		Store:     r.Store,
		Segment:   r.Segment,
	}
	if !math.IsNaN(r.Quantity) {
		v := r.Quantity
		out.Quantity = &v
	}
	if !math.IsNaN(r.UnitPrice) {
		v := r.UnitPrice
		out.UnitPrice = &v
	}
	return json.Marshal(out)
}

func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var in rawRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Date = in.Date
	r.ProductID = in.ProductID
	r.Store = in.Store
	r.Segment = in.Segment
	r.Quantity = math.NaN()
	if in.Quantity != nil {
		r.Quantity = *in.Quantity
	}
	r.UnitPrice = math.NaN()
	if in.UnitPrice != nil {
		r.UnitPrice = *in.UnitPrice
	}
	return nil
}

// Dataset is the active upload for a session. Re-uploading replaces the
// previous dataset wholesale.
type Dataset struct {
	SessionID  string      `json:"session_id"`
	Records    []RawRecord `json:"records"`
	Source     string      `json:"source"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Version    int64       `json:"version"`
}
