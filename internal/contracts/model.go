package contracts

import "time"

// ModelKind identifies a supported estimator family.
type ModelKind string

const (
	ModelLinear    ModelKind = "linear"
	ModelForest    ModelKind = "tree_ensemble"
	ModelBoosted   ModelKind = "boosted_ensemble"
	ModelClassical ModelKind = "classical_time_series"
)

// AllModelKinds lists every estimator the trainer knows how to fit.
func AllModelKinds() []ModelKind {
	return []ModelKind{ModelLinear, ModelForest, ModelBoosted, ModelClassical}
}

// Predictor maps one feature row to a point estimate of demand.
//
// Estimators that forecast natively over their own series (classical time
// series models) implement Forecast and report ok=true; for those, Predict is
// not meaningful and the forecaster must use Forecast instead.
type Predictor interface {
	Predict(features []float64) float64
	Forecast(steps int) ([]float64, bool)
}

// TrainOptions controls the training stage.
type TrainOptions struct {
	Kinds        []ModelKind `json:"kinds"`
	TestFraction float64     `json:"test_fraction"`
	MinTrainRows int         `json:"min_train_rows"`
	Seed         int64       `json:"seed"`
}

// DefaultTrainOptions returns the training defaults.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Kinds:        AllModelKinds(),
		TestFraction: 0.2,
		MinTrainRows: 20,
		Seed:         42,
	}
}

// TrainedModel is one fitted estimator plus the evaluation context captured
// at fit time: the chronological split, held-out predictions and the residual
// spread used later for interval construction.
type TrainedModel struct {
	Kind           ModelKind     `json:"kind"`
	Predictor      Predictor     `json:"-"`
	FeatureVersion int64         `json:"feature_version"`
	SplitIndex     int           `json:"split_index"`
	TrainRows      int           `json:"train_rows"`
	TestRows       int           `json:"test_rows"`
	TestPredicted  []float64     `json:"test_predicted"`
	TestActual     []float64     `json:"test_actual"`
	ResidualStd    float64       `json:"residual_std"`
	TrainedAt      time.Time     `json:"trained_at"`
	FitDuration    time.Duration `json:"fit_duration"`
}

// TrainingReport summarizes one training run: which kinds fitted and which
// failed, with the per-kind reason.
type TrainingReport struct {
	SessionID      string               `json:"session_id"`
	FeatureVersion int64                `json:"feature_version"`
	Trained        []ModelKind          `json:"trained"`
	Failed         map[ModelKind]string `json:"failed,omitempty"`
	SplitIndex     int                  `json:"split_index"`
	TrainRows      int                  `json:"train_rows"`
	TestRows       int                  `json:"test_rows"`
	CompletedAt    time.Time            `json:"completed_at"`
}
