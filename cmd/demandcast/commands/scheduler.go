package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/demandcast/internal/scheduler"
	"github.com/wonny/demandcast/internal/scheduler/jobs"
)

// schedulerCmd starts the background job scheduler.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the background job scheduler",
	Long: `Starts the scheduler with the registered jobs:

  forecast_refresh - daily re-forecast of every session with trained models,
                     with alerts for demand peaks and volatility

Example:
  go run ./cmd/demandcast scheduler
  go run ./cmd/demandcast scheduler --now forecast_refresh`,
	RunE: runScheduler,
}

var schedulerRunNow string

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&schedulerRunNow, "now", "", "run the named job immediately on startup")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.log)
	if err := sched.AddJob(jobs.NewForecastRefresh(a.orch, a.notifier, a.cfg, a.log)); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	if schedulerRunNow != "" {
		if err := sched.RunJob(schedulerRunNow); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	return nil
}
