package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "demandcast",
	Short: "Sales demand forecasting and inventory planning",
	Long: `demandcast - demand forecasting pipeline

Cleans uploaded sales history, derives features, trains several forecasting
models, projects demand over a horizon and turns the result into inventory
guidance.

Examples:
  go run ./cmd/demandcast run --file sales.csv
  go run ./cmd/demandcast run --file sales.xlsx --horizon 14 --kind linear
  go run ./cmd/demandcast api
  go run ./cmd/demandcast scheduler`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
