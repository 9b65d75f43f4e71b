package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/store"
	"github.com/wonny/demandcast/pkg/logger"
)

func newTestOrchestrator() *Orchestrator {
	return New(logger.Nop(), store.NewMemory(), nil, nil)
}

// salesRecords builds a daily two-product history with a mild trend and a
// weekly wave, enough rows to survive warm-up and the train/test split.
func salesRecords(days int) []contracts.RawRecord {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []contracts.RawRecord
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		base := 50 + 0.3*float64(i) + 4*math.Sin(2*math.Pi*float64(i)/7)
		records = append(records,
			contracts.RawRecord{
				Date: date, ProductID: "sku-1", Quantity: base,
				UnitPrice: 12.5, Store: "mapo", Segment: "retail",
			},
			contracts.RawRecord{
				Date: date, ProductID: "sku-2", Quantity: base / 5,
				UnitPrice: 3.0, Store: "mapo", Segment: "retail",
			},
		)
	}
	return records
}

func runThroughTraining(t *testing.T, o *Orchestrator, sessionID string) {
	t.Helper()
	ctx := context.Background()

	_, err := o.UploadDataset(ctx, sessionID, "test", salesRecords(120))
	require.NoError(t, err)
	_, err = o.Preprocess(ctx, sessionID, contracts.DefaultCleanOptions())
	require.NoError(t, err)
	_, err = o.BuildFeatures(ctx, sessionID, contracts.DefaultFeatureOptions())
	require.NoError(t, err)

	opts := contracts.DefaultTrainOptions()
	opts.Kinds = []contracts.ModelKind{contracts.ModelLinear}
	_, err = o.Train(ctx, sessionID, opts)
	require.NoError(t, err)
}

func TestPipelineEndToEnd(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	ds, err := o.UploadDataset(ctx, "s1", "test", salesRecords(120))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.Version)

	cleaned, err := o.Preprocess(ctx, "s1", contracts.DefaultCleanOptions())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cleaned.Dates), 100)

	ft, err := o.BuildFeatures(ctx, "s1", contracts.DefaultFeatureOptions())
	require.NoError(t, err)
	assert.Equal(t, cleaned.Version, ft.BaseVersion)

	trainOpts := contracts.DefaultTrainOptions()
	trainOpts.Kinds = []contracts.ModelKind{contracts.ModelLinear}
	report, err := o.Train(ctx, "s1", trainOpts)
	require.NoError(t, err)
	assert.Equal(t, []contracts.ModelKind{contracts.ModelLinear}, report.Trained)
	assert.Empty(t, report.Failed)

	fc, err := o.ForecastDemand(ctx, "s1", contracts.DefaultForecastOptions())
	require.NoError(t, err)
	assert.Len(t, fc.Points, 30)
	assert.Equal(t, contracts.ModelLinear, fc.Kind)
	for _, p := range fc.Points {
		assert.GreaterOrEqual(t, p.Point, 0.0)
		assert.LessOrEqual(t, p.Lower, p.Point)
		assert.GreaterOrEqual(t, p.Upper, p.Point)
	}

	eval, err := o.Evaluate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, contracts.ModelLinear, eval.Best)
	assert.Equal(t, "s1", eval.SessionID)

	set, err := o.Insights(ctx, "s1", contracts.DefaultInsightOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, set.Recommendations)
	assert.Len(t, set.ABC, 2)
	assert.Greater(t, set.Reorder.ReorderPoint, 0.0)

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	for _, stage := range contracts.StageOrder() {
		assert.True(t, status.Stages[stage], string(stage))
	}
	assert.Equal(t, []contracts.ModelKind{contracts.ModelLinear}, status.Models)
}

func TestPipelineStageGating(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.Preprocess(ctx, "empty", contracts.DefaultCleanOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "preprocess before upload")

	_, err = o.BuildFeatures(ctx, "empty", contracts.DefaultFeatureOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "features before preprocess")

	_, err = o.Train(ctx, "empty", contracts.DefaultTrainOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "training before features")

	_, err = o.ForecastDemand(ctx, "empty", contracts.DefaultForecastOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "forecast before anything")

	_, err = o.Evaluate(ctx, "empty")
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "evaluation before training")
}

func TestPipelineUploadRejectsEmpty(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.UploadDataset(context.Background(), "s1", "test", nil)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestPipelineDatasetVersionIncrements(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	ds, err := o.UploadDataset(ctx, "s1", "test", salesRecords(30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.Version)

	ds, err = o.UploadDataset(ctx, "s1", "test", salesRecords(40))
	require.NoError(t, err)
	assert.Equal(t, int64(2), ds.Version)
}

func TestPipelineReuploadInvalidatesDownstream(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()
	runThroughTraining(t, o, "s1")

	_, err := o.ForecastDemand(ctx, "s1", contracts.DefaultForecastOptions())
	require.NoError(t, err)

	_, err = o.UploadDataset(ctx, "s1", "test", salesRecords(120))
	require.NoError(t, err)

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Stages[contracts.StageDataset])
	for _, stage := range contracts.Downstream(contracts.StageDataset) {
		assert.False(t, status.Stages[stage], string(stage))
	}
	assert.Empty(t, status.Models, "re-upload clears live models")

	_, err = o.Evaluate(ctx, "s1")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestPipelineRerunEvaluateKeepsInsights(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()
	runThroughTraining(t, o, "s1")

	_, err := o.ForecastDemand(ctx, "s1", contracts.DefaultForecastOptions())
	require.NoError(t, err)
	_, err = o.Evaluate(ctx, "s1")
	require.NoError(t, err)
	_, err = o.Insights(ctx, "s1", contracts.DefaultInsightOptions())
	require.NoError(t, err)

	_, err = o.Evaluate(ctx, "s1")
	require.NoError(t, err)

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Stages[contracts.StageInsights], "insights survive a model comparison refresh")
}

func TestPipelineRerunPreprocessClearsModels(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()
	runThroughTraining(t, o, "s1")

	_, err := o.Preprocess(ctx, "s1", contracts.DefaultCleanOptions())
	require.NoError(t, err)

	status, err := o.Status(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Stages[contracts.StagePreprocess])
	assert.False(t, status.Stages[contracts.StageFeatures])
	assert.False(t, status.Stages[contracts.StageTraining])
	assert.Empty(t, status.Models)
}

func TestPipelineSessionIsolation(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	_, err := o.UploadDataset(ctx, "alpha", "test", salesRecords(30))
	require.NoError(t, err)

	_, err = o.Preprocess(ctx, "beta", contracts.DefaultCleanOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "sessions never share artifacts")

	sessions, err := o.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, sessions)
}

func TestPipelineUploadIsolatesCallerSlice(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	records := salesRecords(30)
	_, err := o.UploadDataset(ctx, "s1", "test", records)
	require.NoError(t, err)

	records[0].Quantity = 9999

	var stored contracts.Dataset
	require.NoError(t, o.Artifact(ctx, "s1", contracts.StageDataset, &stored))
	assert.NotEqual(t, 9999.0, stored.Records[0].Quantity)
}

func TestPipelineForecastExplicitKind(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()
	runThroughTraining(t, o, "s1")

	opts := contracts.DefaultForecastOptions()
	opts.Kind = contracts.ModelLinear
	_, err := o.ForecastDemand(ctx, "s1", opts)
	require.NoError(t, err)

	opts.Kind = contracts.ModelClassical
	_, err = o.ForecastDemand(ctx, "s1", opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "kind that was never trained")
}

func TestPipelineForecastSurvivesRestartOfModels(t *testing.T) {
	// Models live only in memory; a fresh orchestrator over the same store
	// sees the artifacts but must ask for retraining before forecasting.
	shared := store.NewMemory()
	ctx := context.Background()

	first := New(logger.Nop(), shared, nil, nil)
	runThroughTraining(t, first, "s1")

	second := New(logger.Nop(), shared, nil, nil)
	status, err := second.Status(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Stages[contracts.StageTraining], "training report persists")
	assert.Empty(t, status.Models, "fitted models do not")

	_, err = second.ForecastDemand(ctx, "s1", contracts.DefaultForecastOptions())
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

type recordingPrefetcher struct {
	calls int
	from  time.Time
	to    time.Time
}

func (p *recordingPrefetcher) Prefetch(ctx context.Context, from, to time.Time) error {
	p.calls++
	p.from, p.to = from, to
	return nil
}

func TestPipelinePrefetchesExogenousRanges(t *testing.T) {
	pf := &recordingPrefetcher{}
	o := New(logger.Nop(), store.NewMemory(), nil, nil).WithPrefetchers(pf)
	ctx := context.Background()

	_, err := o.UploadDataset(ctx, "s1", "test", salesRecords(120))
	require.NoError(t, err)
	cleaned, err := o.Preprocess(ctx, "s1", contracts.DefaultCleanOptions())
	require.NoError(t, err)

	_, err = o.BuildFeatures(ctx, "s1", contracts.DefaultFeatureOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, pf.calls)
	assert.Equal(t, cleaned.Dates[0], pf.from)
	assert.Equal(t, cleaned.Dates[len(cleaned.Dates)-1], pf.to)

	trainOpts := contracts.DefaultTrainOptions()
	trainOpts.Kinds = []contracts.ModelKind{contracts.ModelLinear}
	_, err = o.Train(ctx, "s1", trainOpts)
	require.NoError(t, err)

	_, err = o.ForecastDemand(ctx, "s1", contracts.DefaultForecastOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, pf.calls)
	last := cleaned.Dates[len(cleaned.Dates)-1]
	assert.Equal(t, last.AddDate(0, 0, 1), pf.from, "forecast warms the horizon only")
	assert.Equal(t, last.AddDate(0, 0, 30), pf.to)
}
