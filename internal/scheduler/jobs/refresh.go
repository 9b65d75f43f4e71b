package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/notify"
	"github.com/wonny/demandcast/internal/pipeline"
	"github.com/wonny/demandcast/pkg/config"
	"github.com/wonny/demandcast/pkg/logger"
)

// ForecastRefresh re-runs the forecast and insight stages for every session
// that has trained models, then pushes alerts for anything noteworthy.
type ForecastRefresh struct {
	orch     *pipeline.Orchestrator
	notifier notify.Notifier
	defaults config.PipelineConfig
	log      *logger.Logger
}

// NewForecastRefresh creates the refresh job.
func NewForecastRefresh(orch *pipeline.Orchestrator, notifier notify.Notifier, cfg *config.Config, log *logger.Logger) *ForecastRefresh {
	return &ForecastRefresh{
		orch:     orch,
		notifier: notifier,
		defaults: cfg.Pipeline,
		log:      log.WithComponent("forecast-refresh"),
	}
}

// Name returns the job name
func (j *ForecastRefresh) Name() string {
	return "forecast_refresh"
}

// Schedule runs the refresh every day at 05:00.
func (j *ForecastRefresh) Schedule() string {
	return "0 0 5 * * *"
}

// Run refreshes every refreshable session. Sessions without trained models
// are skipped; one failing session does not stop the rest.
func (j *ForecastRefresh) Run(ctx context.Context) error {
	sessions, err := j.orch.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	refreshed := 0
	for _, id := range sessions {
		if err := j.refresh(ctx, id); err != nil {
			j.log.WithField("session", id).WithError(err).Warn("session refresh skipped")
			continue
		}
		refreshed++
	}

	j.log.WithField("sessions", len(sessions)).WithField("refreshed", refreshed).
		Info("forecast refresh finished")
	return nil
}

func (j *ForecastRefresh) refresh(ctx context.Context, sessionID string) error {
	fcOpts := contracts.DefaultForecastOptions()
	fcOpts.Horizon = j.defaults.Horizon
	fcOpts.Confidence = j.defaults.Confidence

	fc, err := j.orch.ForecastDemand(ctx, sessionID, fcOpts)
	if err != nil {
		return err
	}

	inOpts := contracts.DefaultInsightOptions()
	inOpts.LeadTimeDays = j.defaults.LeadTimeDays
	inOpts.ServiceLevel = j.defaults.ServiceLevel
	inOpts.OrderCost = j.defaults.OrderCost
	inOpts.HoldingCost = j.defaults.HoldingCost

	set, err := j.orch.Insights(ctx, sessionID, inOpts)
	if err != nil {
		return err
	}

	for _, alert := range notify.BuildAlerts(sessionID, fc, set, inOpts) {
		if err := j.notifier.Send(ctx, alert); err != nil {
			j.log.WithField("session", sessionID).WithError(err).Warn("alert delivery failed")
		}
	}
	return nil
}
