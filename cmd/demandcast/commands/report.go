package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/demandcast/internal/report"
)

// reportCmd prints the stored report for a session. Useful with the
// database-backed store, where artifacts survive between invocations.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the text report for a session",
	RunE:  runReport,
}

var reportSession string

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportSession, "session", "", "session id")
	_ = reportCmd.MarkFlagRequired("session")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	artifacts, err := report.Collect(ctx, a.orch, reportSession)
	if err != nil {
		return err
	}
	fmt.Print(report.Render(artifacts))
	return nil
}
