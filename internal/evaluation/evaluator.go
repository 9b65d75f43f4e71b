package evaluation

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "evaluation"

// Evaluator scores trained models on their shared held-out window and ranks
// them.
type Evaluator struct {
	log *logger.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(log *logger.Logger) *Evaluator {
	return &Evaluator{log: log.WithComponent("evaluator")}
}

// Evaluate computes metrics for every trained model. All models are scored
// on the same chronological test window captured at training time, so the
// comparison is apples to apples.
func (e *Evaluator) Evaluate(models map[contracts.ModelKind]*contracts.TrainedModel) (*contracts.EvaluationResult, error) {
	if len(models) == 0 {
		return nil, contracts.NotFoundf(stage, "no trained models to evaluate")
	}

	result := &contracts.EvaluationResult{
		Skipped:     make(map[contracts.ModelKind]string),
		EvaluatedAt: time.Now().UTC(),
	}

	for kind, model := range models {
		if result.FeatureVersion == 0 {
			result.FeatureVersion = model.FeatureVersion
			result.TestRows = model.TestRows
		}
		if len(model.TestActual) == 0 || len(model.TestPredicted) != len(model.TestActual) {
			result.Skipped[kind] = "no held-out predictions recorded"
			continue
		}
		result.Scores = append(result.Scores, contracts.ModelScore{
			Kind:    kind,
			Metrics: Score(model.TestActual, model.TestPredicted),
		})
	}

	if len(result.Scores) == 0 {
		return nil, contracts.NotFoundf(stage, "no model produced held-out predictions")
	}
	if len(result.Skipped) == 0 {
		result.Skipped = nil
	}

	sort.SliceStable(result.Scores, func(i, j int) bool {
		a, b := result.Scores[i].Metrics, result.Scores[j].Metrics
		if a.RMSE != b.RMSE {
			return a.RMSE < b.RMSE
		}
		return a.MAE < b.MAE
	})
	for i := range result.Scores {
		result.Scores[i].Rank = i + 1
	}
	result.Best = result.Scores[0].Kind

	e.log.WithField("best", result.Best).
		WithField("models", len(result.Scores)).
		Info("models evaluated")

	return result, nil
}

// Score computes error metrics for one prediction series.
//
// MAPE skips points whose actual value is zero; when every point is zero the
// percentage metrics are reported as zero with MAPEValid zero so callers can
// tell "perfect" apart from "unmeasurable".
func Score(actual, predicted []float64) contracts.Metrics {
	n := float64(len(actual))

	var absSum, sqSum float64
	var pctSum float64
	pctValid := 0
	for i := range actual {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actual[i] != 0 {
			pctSum += math.Abs(diff/actual[i]) * 100
			pctValid++
		}
	}

	m := contracts.Metrics{
		MAE:       absSum / n,
		RMSE:      math.Sqrt(sqSum / n),
		MAPEValid: pctValid,
	}
	if pctValid > 0 {
		m.MAPE = pctSum / float64(pctValid)
		m.AccuracyPC = math.Max(0, 100-m.MAPE)
	}

	mean := 0.0
	for _, a := range actual {
		mean += a
	}
	mean /= n
	var sst float64
	for _, a := range actual {
		sst += (a - mean) * (a - mean)
	}
	if sst > 0 {
		m.R2 = 1 - sqSum/sst
	}

	return m
}
