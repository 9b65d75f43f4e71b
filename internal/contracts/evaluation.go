package contracts

import "time"

// Metrics holds the error metrics for one model on the held-out window.
// MAPE excludes points whose actual value is zero; MAPEValid reports how many
// points contributed.
type Metrics struct {
	MAE        float64 `json:"mae"`
	RMSE       float64 `json:"rmse"`
	MAPE       float64 `json:"mape"`
	MAPEValid  int     `json:"mape_valid"`
	R2         float64 `json:"r2"`
	AccuracyPC float64 `json:"accuracy_pct"`
}

// ModelScore pairs a model kind with its metrics and comparison rank.
// Rank 1 is best; ordering is ascending RMSE with MAE as tie-break.
type ModelScore struct {
	Kind    ModelKind `json:"kind"`
	Metrics Metrics   `json:"metrics"`
	Rank    int       `json:"rank"`
}

// EvaluationResult compares every trained model on the same held-out window.
type EvaluationResult struct {
	SessionID      string               `json:"session_id"`
	FeatureVersion int64                `json:"feature_version"`
	Scores         []ModelScore         `json:"scores"`
	Best           ModelKind            `json:"best"`
	Skipped        map[ModelKind]string `json:"skipped,omitempty"`
	TestRows       int                  `json:"test_rows"`
	EvaluatedAt    time.Time            `json:"evaluated_at"`
}
