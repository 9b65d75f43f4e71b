package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/demandcast/internal/api"
	"github.com/wonny/demandcast/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health                              - Health check
  POST /api/sessions                        - Create a session
  POST /api/sessions/{id}/dataset           - Upload sales data (CSV/Excel/JSON)
  POST /api/sessions/{id}/preprocess        - Clean the dataset
  POST /api/sessions/{id}/features          - Build the feature table
  POST /api/sessions/{id}/train             - Train models
  POST /api/sessions/{id}/forecast          - Forecast demand
  POST /api/sessions/{id}/evaluate          - Compare models
  POST /api/sessions/{id}/insights          - Inventory analysis
  GET  /api/sessions/{id}/report            - Flat text report
  GET  /api/sessions/{id}/artifacts/{stage} - Raw stage artifact

Example:
  go run ./cmd/demandcast api
  go run ./cmd/demandcast api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	handler := handlers.NewPipelineHandler(a.orch, a.loader, a.cfg, a.log)
	router := api.NewRouter(handler, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
