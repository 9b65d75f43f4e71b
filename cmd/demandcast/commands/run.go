package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/internal/notify"
	"github.com/wonny/demandcast/internal/report"
)

// runCmd executes the whole pipeline on one file and prints the report.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline on a sales file",
	Long: `Runs every stage in order on one uploaded file: clean, build features,
train, forecast, evaluate, analyze inventory, then print the text report.

Example:
  go run ./cmd/demandcast run --file sales.csv
  go run ./cmd/demandcast run --file sales.xlsx --horizon 14 --kind linear`,
	RunE: runPipeline,
}

var (
	runFile       string
	runSession    string
	runHorizon    int
	runConfidence float64
	runKind       string
	runLeadTime   int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFile, "file", "", "sales file (CSV or Excel)")
	runCmd.Flags().StringVar(&runSession, "session", "", "session id (default: random)")
	runCmd.Flags().IntVar(&runHorizon, "horizon", 0, "forecast horizon in days")
	runCmd.Flags().Float64Var(&runConfidence, "confidence", 0, "interval confidence level")
	runCmd.Flags().StringVar(&runKind, "kind", "", "model kind to forecast with")
	runCmd.Flags().IntVar(&runLeadTime, "lead-time", 0, "replenishment lead time in days")
	_ = runCmd.MarkFlagRequired("file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sessionID := runSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	records, err := a.loader.LoadFile(runFile)
	if err != nil {
		return err
	}
	if _, err := a.orch.UploadDataset(ctx, sessionID, runFile, records); err != nil {
		return err
	}

	cleanOpts := contracts.DefaultCleanOptions()
	cleanOpts.MinRows = a.cfg.Pipeline.MinRows
	if _, err := a.orch.Preprocess(ctx, sessionID, cleanOpts); err != nil {
		return err
	}

	featOpts := contracts.DefaultFeatureOptions()
	featOpts.Lags = a.cfg.Pipeline.Lags
	featOpts.Windows = a.cfg.Pipeline.Windows
	if _, err := a.orch.BuildFeatures(ctx, sessionID, featOpts); err != nil {
		return err
	}

	trainOpts := contracts.DefaultTrainOptions()
	trainOpts.TestFraction = a.cfg.Pipeline.TestFraction
	trainOpts.MinTrainRows = a.cfg.Pipeline.MinTrainRows
	trainReport, err := a.orch.Train(ctx, sessionID, trainOpts)
	if err != nil {
		return err
	}
	for kind, reason := range trainReport.Failed {
		a.log.WithField("kind", kind).WithField("reason", reason).
			Warn("model kind skipped")
	}

	fcOpts := contracts.DefaultForecastOptions()
	fcOpts.Horizon = a.cfg.Pipeline.Horizon
	fcOpts.Confidence = a.cfg.Pipeline.Confidence
	if runHorizon > 0 {
		fcOpts.Horizon = runHorizon
	}
	if runConfidence > 0 {
		fcOpts.Confidence = runConfidence
	}
	fcOpts.Kind = contracts.ModelKind(runKind)
	fc, err := a.orch.ForecastDemand(ctx, sessionID, fcOpts)
	if err != nil {
		return err
	}

	if _, err := a.orch.Evaluate(ctx, sessionID); err != nil {
		return err
	}

	inOpts := contracts.DefaultInsightOptions()
	inOpts.LeadTimeDays = a.cfg.Pipeline.LeadTimeDays
	inOpts.ServiceLevel = a.cfg.Pipeline.ServiceLevel
	inOpts.OrderCost = a.cfg.Pipeline.OrderCost
	inOpts.HoldingCost = a.cfg.Pipeline.HoldingCost
	if runLeadTime > 0 {
		inOpts.LeadTimeDays = runLeadTime
	}
	set, err := a.orch.Insights(ctx, sessionID, inOpts)
	if err != nil {
		return err
	}

	for _, alert := range notify.BuildAlerts(sessionID, fc, set, inOpts) {
		if err := a.notifier.Send(ctx, alert); err != nil {
			a.log.WithError(err).Warn("alert delivery failed")
		}
	}

	artifacts, err := report.Collect(ctx, a.orch, sessionID)
	if err != nil {
		return err
	}
	fmt.Print(report.Render(artifacts))
	return nil
}
