package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/jobstore"
	"github.com/valid8/valid8/internal/orchestrator"
)

var orchestratorPort int

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Start the orchestrator service",
	Long:  "Accepts batch uploads, drives them through the ingestion and validation services, and serves job status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("orchestrator"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := jobstore.Open(ctx, cfg.JobStore)
		if err != nil {
			return err
		}
		defer store.Close()
		zap.L().Info("job store ready", zap.String("driver", cfg.JobStore.Driver))

		pipeline := orchestrator.NewPipeline(store,
			orchestrator.NewIngestionClient(cfg.Orchestrator.IngestionURL),
			orchestrator.NewValidationClient(cfg.Orchestrator.ValidationURL))
		handler := orchestrator.NewHandler(store, pipeline)

		port := orchestratorPort
		if port == 0 {
			port = cfg.Server.Port
		}
		return serveHTTP(ctx, port, handler.Routes())
	},
}

func init() {
	orchestratorCmd.Flags().IntVar(&orchestratorPort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(orchestratorCmd)
}
