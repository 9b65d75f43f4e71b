package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/evaluation"
	"github.com/wonny/demandcast/internal/features"
	"github.com/wonny/demandcast/internal/forecasting"
	"github.com/wonny/demandcast/internal/insights"
	"github.com/wonny/demandcast/internal/preprocess"
	"github.com/wonny/demandcast/internal/training"
	"github.com/wonny/demandcast/pkg/logger"
)

// kindPreference orders model kinds for forecasting when the caller does not
// pick one explicitly.
var kindPreference = []contracts.ModelKind{
	contracts.ModelBoosted,
	contracts.ModelForest,
	contracts.ModelLinear,
	contracts.ModelClassical,
}

// Orchestrator runs the stages in order and owns per-session state. Stages
// form a strict chain: each one reads only the persisted output of the stage
// before it, and re-running a stage drops everything after it.
type Orchestrator struct {
	log        *logger.Logger
	store      contracts.ArtifactStore
	cleaner    *preprocess.Cleaner
	engineer   *features.Engineer
	trainer    *training.Trainer
	forecaster *forecasting.Forecaster
	insights   *insights.Engine
	evaluator  *evaluation.Evaluator

	prefetchers []Prefetcher

	mu       sync.Mutex
	sessions map[string]*session
}

// Prefetcher loads external data for a date range ahead of feature building.
type Prefetcher interface {
	Prefetch(ctx context.Context, from, to time.Time) error
}

// session holds the state that cannot round-trip through the artifact store:
// fitted models are live function objects, not data. Its mutex serializes
// operations so a session has at most one in flight.
type session struct {
	mu     sync.Mutex
	models map[contracts.ModelKind]*contracts.TrainedModel
}

// New creates an Orchestrator over the given artifact store and exogenous
// sources.
func New(log *logger.Logger, store contracts.ArtifactStore, holidays features.HolidaySource, weather features.WeatherSource) *Orchestrator {
	return &Orchestrator{
		log:        log.WithComponent("pipeline"),
		store:      store,
		cleaner:    preprocess.NewCleaner(log),
		engineer:   features.NewEngineer(log, holidays, weather),
		trainer:    training.NewTrainer(log),
		forecaster: forecasting.NewForecaster(log, holidays, weather),
		insights:   insights.NewEngine(log),
		evaluator:  evaluation.NewEvaluator(log),
	}
}

// WithPrefetchers registers external sources to warm up before features are
// built or a forecast extends past the history.
func (o *Orchestrator) WithPrefetchers(p ...Prefetcher) *Orchestrator {
	o.prefetchers = append(o.prefetchers, p...)
	return o
}

// prefetch warms every registered source. A failing source only loses its
// own columns to the neutral fill, so failures are logged, not returned.
func (o *Orchestrator) prefetch(ctx context.Context, from, to time.Time) {
	for _, p := range o.prefetchers {
		if err := p.Prefetch(ctx, from, to); err != nil {
			o.log.WithError(err).Warn("external prefetch failed")
		}
	}
}

func (o *Orchestrator) session(id string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions == nil {
		o.sessions = make(map[string]*session)
	}
	s, ok := o.sessions[id]
	if !ok {
		s = &session{models: make(map[contracts.ModelKind]*contracts.TrainedModel)}
		o.sessions[id] = s
	}
	return s
}

// invalidate drops every artifact strictly after stage, and the live models
// when the training stage itself is invalidated.
func (o *Orchestrator) invalidate(ctx context.Context, sessionID string, s *session, stage contracts.Stage) error {
	downstream := contracts.Downstream(stage)
	if err := o.store.Delete(ctx, sessionID, downstream...); err != nil {
		return err
	}
	for _, st := range downstream {
		if st == contracts.StageTraining {
			s.models = make(map[contracts.ModelKind]*contracts.TrainedModel)
		}
	}
	return nil
}

// UploadDataset replaces the session's active dataset and invalidates every
// derived artifact.
func (o *Orchestrator) UploadDataset(ctx context.Context, sessionID, source string, records []contracts.RawRecord) (*contracts.Dataset, error) {
	if len(records) == 0 {
		return nil, contracts.Validationf(string(contracts.StageDataset), "no records in upload")
	}

	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	version := int64(1)
	var prev contracts.Dataset
	if err := o.store.Read(ctx, sessionID, contracts.StageDataset, &prev); err == nil {
		version = prev.Version + 1
	}

	ds := &contracts.Dataset{
		SessionID:  sessionID,
		Records:    records,
		Source:     source,
		UploadedAt: time.Now().UTC(),
		Version:    version,
	}
	if err := o.store.Write(ctx, sessionID, contracts.StageDataset, ds); err != nil {
		return nil, err
	}
	if err := o.invalidate(ctx, sessionID, s, contracts.StageDataset); err != nil {
		return nil, err
	}

	o.log.WithField("session", sessionID).WithField("records", len(records)).
		WithField("version", version).Info("dataset uploaded")
	return ds, nil
}

// Preprocess cleans the active dataset.
func (o *Orchestrator) Preprocess(ctx context.Context, sessionID string, opts contracts.CleanOptions) (*contracts.CleanedTable, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ds contracts.Dataset
	if err := o.store.Read(ctx, sessionID, contracts.StageDataset, &ds); err != nil {
		return nil, err
	}

	cleaned, err := o.cleaner.Clean(&ds, opts)
	if err != nil {
		return nil, err
	}
	if err := o.store.Write(ctx, sessionID, contracts.StagePreprocess, cleaned); err != nil {
		return nil, err
	}
	if err := o.invalidate(ctx, sessionID, s, contracts.StagePreprocess); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// BuildFeatures derives the feature table from the cleaned table.
func (o *Orchestrator) BuildFeatures(ctx context.Context, sessionID string, opts contracts.FeatureOptions) (*contracts.FeatureTable, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleaned contracts.CleanedTable
	if err := o.store.Read(ctx, sessionID, contracts.StagePreprocess, &cleaned); err != nil {
		return nil, err
	}

	o.prefetch(ctx, cleaned.Dates[0], cleaned.Dates[len(cleaned.Dates)-1])

	ft, err := o.engineer.Build(&cleaned, opts)
	if err != nil {
		return nil, err
	}
	if err := o.store.Write(ctx, sessionID, contracts.StageFeatures, ft); err != nil {
		return nil, err
	}
	if err := o.invalidate(ctx, sessionID, s, contracts.StageFeatures); err != nil {
		return nil, err
	}
	return ft, nil
}

// Train fits the requested model kinds on the feature table.
func (o *Orchestrator) Train(ctx context.Context, sessionID string, opts contracts.TrainOptions) (*contracts.TrainingReport, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ft contracts.FeatureTable
	if err := o.store.Read(ctx, sessionID, contracts.StageFeatures, &ft); err != nil {
		return nil, err
	}

	models, report, err := o.trainer.Train(&ft, opts)
	if err != nil {
		return nil, err
	}

	if err := o.store.Write(ctx, sessionID, contracts.StageTraining, report); err != nil {
		return nil, err
	}
	if err := o.invalidate(ctx, sessionID, s, contracts.StageTraining); err != nil {
		return nil, err
	}
	s.models = models
	return report, nil
}

// ForecastDemand projects demand over the horizon with one trained model.
// With no explicit kind the best available by preference order is used.
func (o *Orchestrator) ForecastDemand(ctx context.Context, sessionID string, opts contracts.ForecastOptions) (*contracts.Forecast, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleaned contracts.CleanedTable
	if err := o.store.Read(ctx, sessionID, contracts.StagePreprocess, &cleaned); err != nil {
		return nil, err
	}
	var ft contracts.FeatureTable
	if err := o.store.Read(ctx, sessionID, contracts.StageFeatures, &ft); err != nil {
		return nil, err
	}

	lastDate := cleaned.Dates[len(cleaned.Dates)-1]
	o.prefetch(ctx, lastDate.AddDate(0, 0, 1), lastDate.AddDate(0, 0, opts.Horizon))

	model, err := o.resolveModel(s, opts.Kind)
	if err != nil {
		return nil, err
	}

	fc, err := o.forecaster.Forecast(&cleaned, &ft, model, opts)
	if err != nil {
		return nil, err
	}
	if err := o.store.Write(ctx, sessionID, contracts.StageForecast, fc); err != nil {
		return nil, err
	}
	if err := o.invalidate(ctx, sessionID, s, contracts.StageForecast); err != nil {
		return nil, err
	}
	return fc, nil
}

func (o *Orchestrator) resolveModel(s *session, kind contracts.ModelKind) (*contracts.TrainedModel, error) {
	if len(s.models) == 0 {
		return nil, contracts.NotFoundf(string(contracts.StageForecast), "no trained models; run training first")
	}
	if kind != "" {
		m, ok := s.models[kind]
		if !ok {
			return nil, contracts.NotFoundf(string(contracts.StageForecast), "model kind %q was not trained", kind)
		}
		return m, nil
	}
	for _, k := range kindPreference {
		if m, ok := s.models[k]; ok {
			return m, nil
		}
	}
	return nil, contracts.NotFoundf(string(contracts.StageForecast), "no usable trained model")
}

// Evaluate compares every trained model on the held-out window. No later
// stage consumes the comparison, so re-running it invalidates nothing.
func (o *Orchestrator) Evaluate(ctx context.Context, sessionID string) (*contracts.EvaluationResult, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := o.evaluator.Evaluate(s.models)
	if err != nil {
		return nil, err
	}
	result.SessionID = sessionID

	if err := o.store.Write(ctx, sessionID, contracts.StageEvaluation, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Insights derives inventory guidance from the history and the forecast.
func (o *Orchestrator) Insights(ctx context.Context, sessionID string, opts contracts.InsightOptions) (*contracts.InsightSet, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ds contracts.Dataset
	if err := o.store.Read(ctx, sessionID, contracts.StageDataset, &ds); err != nil {
		return nil, err
	}
	var cleaned contracts.CleanedTable
	if err := o.store.Read(ctx, sessionID, contracts.StagePreprocess, &cleaned); err != nil {
		return nil, err
	}
	var fc contracts.Forecast
	if err := o.store.Read(ctx, sessionID, contracts.StageForecast, &fc); err != nil {
		return nil, err
	}

	set, err := o.insights.Analyze(&ds, &cleaned, &fc, opts)
	if err != nil {
		return nil, err
	}
	if err := o.store.Write(ctx, sessionID, contracts.StageInsights, set); err != nil {
		return nil, err
	}
	return set, nil
}

// Status reports which stages have artifacts and which models are live.
type Status struct {
	SessionID string                   `json:"session_id"`
	Stages    map[contracts.Stage]bool `json:"stages"`
	Models    []contracts.ModelKind    `json:"models"`
}

// Status summarizes the session's progress through the pipeline.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (*Status, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{
		SessionID: sessionID,
		Stages:    make(map[contracts.Stage]bool),
	}
	for _, stage := range contracts.StageOrder() {
		var raw interface{}
		st.Stages[stage] = o.store.Read(ctx, sessionID, stage, &raw) == nil
	}
	for kind := range s.models {
		st.Models = append(st.Models, kind)
	}
	sort.Slice(st.Models, func(i, j int) bool { return st.Models[i] < st.Models[j] })
	return st, nil
}

// Artifact reads one stage artifact into dest for read-only consumers.
func (o *Orchestrator) Artifact(ctx context.Context, sessionID string, stage contracts.Stage, dest interface{}) error {
	return o.store.Read(ctx, sessionID, stage, dest)
}

// Sessions lists session ids known to the artifact store.
func (o *Orchestrator) Sessions(ctx context.Context) ([]string, error) {
	return o.store.Sessions(ctx)
}
