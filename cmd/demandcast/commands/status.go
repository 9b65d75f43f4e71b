package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/demandcast/internal/contracts"
)

// statusCmd shows which stages have artifacts for a session.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress for a session",
	RunE:  runStatus,
}

var statusSession string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusSession, "session", "", "session id")
	_ = statusCmd.MarkFlagRequired("session")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.orch.Status(ctx, statusSession)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s\n", status.SessionID)
	for _, stage := range contracts.StageOrder() {
		mark := " "
		if status.Stages[stage] {
			mark = "x"
		}
		fmt.Printf("  [%s] %s\n", mark, stage)
	}
	if len(status.Models) > 0 {
		fmt.Printf("  live models: %v\n", status.Models)
	}
	return nil
}
