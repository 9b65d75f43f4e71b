package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/pipeline"
)

const line = "================================================================"

// Artifacts collects whatever stage outputs exist for a session. Nil fields
// render as "not run yet" sections.
type Artifacts struct {
	SessionID  string
	Cleaned    *contracts.CleanedTable
	Training   *contracts.TrainingReport
	Forecast   *contracts.Forecast
	Evaluation *contracts.EvaluationResult
	Insights   *contracts.InsightSet
}

// Collect reads every available artifact for a session. Missing stages are
// skipped, not errors.
func Collect(ctx context.Context, orch *pipeline.Orchestrator, sessionID string) (*Artifacts, error) {
	a := &Artifacts{SessionID: sessionID}

	var cleaned contracts.CleanedTable
	if err := orch.Artifact(ctx, sessionID, contracts.StagePreprocess, &cleaned); err == nil {
		a.Cleaned = &cleaned
	}
	var tr contracts.TrainingReport
	if err := orch.Artifact(ctx, sessionID, contracts.StageTraining, &tr); err == nil {
		a.Training = &tr
	}
	var fc contracts.Forecast
	if err := orch.Artifact(ctx, sessionID, contracts.StageForecast, &fc); err == nil {
		a.Forecast = &fc
	}
	var ev contracts.EvaluationResult
	if err := orch.Artifact(ctx, sessionID, contracts.StageEvaluation, &ev); err == nil {
		a.Evaluation = &ev
	}
	var set contracts.InsightSet
	if err := orch.Artifact(ctx, sessionID, contracts.StageInsights, &set); err == nil {
		a.Insights = &set
	}

	if a.Cleaned == nil && a.Forecast == nil && a.Insights == nil {
		return nil, contracts.NotFoundf("report", "no artifacts for session %s", sessionID)
	}
	return a, nil
}

// Render formats the artifacts as a flat text report.
func Render(a *Artifacts) string {
	var b strings.Builder

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "DEMAND FORECAST REPORT")
	fmt.Fprintf(&b, "Session:   %s\n", a.SessionID)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintln(&b, line)

	renderData(&b, a.Cleaned)
	renderTraining(&b, a.Training)
	renderForecast(&b, a.Forecast)
	renderEvaluation(&b, a.Evaluation)
	renderInsights(&b, a.Insights)

	fmt.Fprintln(&b, line)
	return b.String()
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n--- %s ---\n", title)
}

func renderData(b *strings.Builder, t *contracts.CleanedTable) {
	section(b, "DATA")
	if t == nil {
		fmt.Fprintln(b, "preprocessing has not run")
		return
	}
	fmt.Fprintf(b, "Observations: %d days (%s to %s)\n",
		len(t.Dates),
		t.Dates[0].Format("2006-01-02"),
		t.Dates[len(t.Dates)-1].Format("2006-01-02"))
	fmt.Fprintf(b, "Input rows:   %d (dropped %d outliers, imputed %d values)\n",
		t.InputRows, t.DroppedRows, t.ImputedValues)
}

func renderTraining(b *strings.Builder, tr *contracts.TrainingReport) {
	section(b, "MODELS")
	if tr == nil {
		fmt.Fprintln(b, "training has not run")
		return
	}
	fmt.Fprintf(b, "Split:   %d train / %d test rows\n", tr.TrainRows, tr.TestRows)
	fmt.Fprintf(b, "Trained: %s\n", joinKinds(tr.Trained))
	for kind, reason := range tr.Failed {
		fmt.Fprintf(b, "Failed:  %s (%s)\n", kind, reason)
	}
}

func renderForecast(b *strings.Builder, fc *contracts.Forecast) {
	section(b, "FORECAST")
	if fc == nil {
		fmt.Fprintln(b, "forecasting has not run")
		return
	}
	s := fc.Summary
	fmt.Fprintf(b, "Model:      %s over %d days at %.0f%% confidence\n",
		fc.Kind, fc.Horizon, fc.Confidence*100)
	fmt.Fprintf(b, "Total:      %.1f units (%.1f/day, %s trend)\n", s.Total, s.DailyMean, s.Trend)
	fmt.Fprintf(b, "Peak:       %.1f on %s\n", s.PeakValue, s.PeakDate.Format("2006-01-02"))
	fmt.Fprintf(b, "Low:        %.1f on %s\n", s.LowValue, s.LowDate.Format("2006-01-02"))
}

func renderEvaluation(b *strings.Builder, ev *contracts.EvaluationResult) {
	section(b, "EVALUATION")
	if ev == nil {
		fmt.Fprintln(b, "evaluation has not run")
		return
	}
	fmt.Fprintf(b, "%-24s %8s %8s %8s %9s\n", "model", "RMSE", "MAE", "MAPE%", "accuracy%")
	for _, score := range ev.Scores {
		m := score.Metrics
		fmt.Fprintf(b, "%d. %-21s %8.2f %8.2f %8.2f %9.1f\n",
			score.Rank, score.Kind, m.RMSE, m.MAE, m.MAPE, m.AccuracyPC)
	}
	fmt.Fprintf(b, "Best model: %s\n", ev.Best)
}

func renderInsights(b *strings.Builder, set *contracts.InsightSet) {
	section(b, "INVENTORY")
	if set == nil {
		fmt.Fprintln(b, "insight analysis has not run")
		return
	}
	r := set.Reorder
	fmt.Fprintf(b, "Avg demand:    %.1f/day (volatility %.2f, trend %s)\n",
		set.Profile.AvgDaily, set.Profile.Volatility, set.Profile.TrendLabel)
	fmt.Fprintf(b, "Reorder point: %.0f units (safety stock %.0f, lead time %d days)\n",
		r.ReorderPoint, r.SafetyStock, r.LeadTimeDays)
	fmt.Fprintf(b, "Order size:    %.0f units (%.1f orders/year)\n", r.EOQ, r.OrdersPerYear)

	if len(set.ABC) > 0 {
		fmt.Fprintln(b, "ABC classes:")
		for _, e := range set.ABC {
			fmt.Fprintf(b, "  [%s] %-20s %10.2f (%5.1f%% of revenue)\n",
				e.Class, e.ProductID, e.Revenue, e.RevenueShare*100)
		}
	}

	fmt.Fprintln(b, "Recommendations:")
	for _, rec := range set.Recommendations {
		fmt.Fprintf(b, "  [%s] %s\n", strings.ToUpper(string(rec.Priority)), rec.Message)
		fmt.Fprintf(b, "         %s\n", rec.Impact)
	}
}

func joinKinds(kinds []contracts.ModelKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
