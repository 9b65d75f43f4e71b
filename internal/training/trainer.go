package training

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "training"

// Trainer fits every requested model kind on a chronological train/test
// split of the feature table. One kind failing never aborts the others.
type Trainer struct {
	log *logger.Logger
}

// NewTrainer creates a Trainer.
func NewTrainer(log *logger.Logger) *Trainer {
	return &Trainer{log: log.WithComponent("trainer")}
}

// Train fits the requested kinds. It returns the successfully trained models
// together with a report naming the kinds that failed and why. An error is
// returned only when no model at all could be trained.
func (t *Trainer) Train(ft *contracts.FeatureTable, opts contracts.TrainOptions) (map[contracts.ModelKind]*contracts.TrainedModel, *contracts.TrainingReport, error) {
	if ft == nil || len(ft.Rows) == 0 {
		return nil, nil, contracts.Trainingf(stage, "feature table is empty")
	}
	if len(opts.Kinds) == 0 {
		return nil, nil, contracts.Trainingf(stage, "no model kinds requested")
	}

	n := len(ft.Rows)
	testRows := int(math.Round(float64(n) * opts.TestFraction))
	if testRows < 1 {
		testRows = 1
	}
	splitIdx := n - testRows
	if splitIdx < opts.MinTrainRows {
		return nil, nil, contracts.Trainingf(stage,
			"%d training rows after split, need at least %d", splitIdx, opts.MinTrainRows)
	}

	models := make(map[contracts.ModelKind]*contracts.TrainedModel)
	failed := make(map[contracts.ModelKind]string)

	for _, kind := range opts.Kinds {
		start := time.Now()
		predictor, testPred, err := t.fitKind(kind, ft, splitIdx, opts)
		if err != nil {
			failed[kind] = err.Error()
			t.log.WithField("kind", kind).WithError(err).Warn("model training failed")
			continue
		}

		actual := ft.Target[splitIdx:]
		models[kind] = &contracts.TrainedModel{
			Kind:           kind,
			Predictor:      predictor,
			FeatureVersion: ft.Version,
			SplitIndex:     splitIdx,
			TrainRows:      splitIdx,
			TestRows:       testRows,
			TestPredicted:  testPred,
			TestActual:     append([]float64(nil), actual...),
			ResidualStd:    residualStd(actual, testPred),
			TrainedAt:      time.Now().UTC(),
			FitDuration:    time.Since(start),
		}
		t.log.WithField("kind", kind).
			WithField("duration", time.Since(start)).
			Info("model trained")
	}

	if len(models) == 0 {
		return nil, nil, contracts.Trainingf(stage, "all %d model kinds failed", len(opts.Kinds))
	}

	report := &contracts.TrainingReport{
		SessionID:      ft.SessionID,
		FeatureVersion: ft.Version,
		Failed:         failed,
		SplitIndex:     splitIdx,
		TrainRows:      splitIdx,
		TestRows:       testRows,
		CompletedAt:    time.Now().UTC(),
	}
	for _, kind := range opts.Kinds {
		if _, ok := models[kind]; ok {
			report.Trained = append(report.Trained, kind)
		}
	}

	return models, report, nil
}

// fitKind dispatches to one estimator. A panic inside a fit is converted to
// an error so a misbehaving estimator cannot take down the run.
func (t *Trainer) fitKind(kind contracts.ModelKind, ft *contracts.FeatureTable, splitIdx int, opts contracts.TrainOptions) (predictor contracts.Predictor, testPred []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			predictor, testPred = nil, nil
			err = fmt.Errorf("fit panicked: %v", r)
		}
	}()

	trainX := ft.Rows[:splitIdx]
	trainY := ft.Target[:splitIdx]
	testX := ft.Rows[splitIdx:]

	switch kind {
	case contracts.ModelLinear:
		m, ferr := fitLinear(trainX, trainY)
		if ferr != nil {
			return nil, nil, ferr
		}
		return m, predictRows(m, testX), nil

	case contracts.ModelForest:
		m, ferr := fitForest(trainX, trainY, opts.Seed)
		if ferr != nil {
			return nil, nil, ferr
		}
		return m, predictRows(m, testX), nil

	case contracts.ModelBoosted:
		m, ferr := fitBoosted(trainX, trainY)
		if ferr != nil {
			return nil, nil, ferr
		}
		return m, predictRows(m, testX), nil

	case contracts.ModelClassical:
		m, preds, ferr := fitClassical(trainY, ft.Target, len(testX))
		if ferr != nil {
			return nil, nil, ferr
		}
		return m, preds, nil

	default:
		return nil, nil, fmt.Errorf("unknown model kind %q", kind)
	}
}

func predictRows(p contracts.Predictor, rows [][]float64) []float64 {
	preds := make([]float64, len(rows))
	for i, row := range rows {
		preds[i] = p.Predict(row)
	}
	return preds
}

// residualStd is the standard deviation of held-out residuals. A single test
// point yields zero spread rather than NaN.
func residualStd(actual, predicted []float64) float64 {
	n := len(actual)
	if n < 2 || len(predicted) != n {
		return 0
	}
	residuals := make([]float64, n)
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
	}
	std := stat.StdDev(residuals, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}
