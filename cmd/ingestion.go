package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valid8/valid8/internal/ingest"
)

var ingestionPort int

var ingestionCmd = &cobra.Command{
	Use:   "ingestion",
	Short: "Start the ingestion service",
	Long:  "Serves the CSV cleaning endpoint: uploads go through the LLM and come back as structured provider records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingestion"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		invoker, gen, err := buildInvoker(cfg)
		if err != nil {
			return err
		}

		cleaner := ingest.NewCleaner(invoker, cfg.Ingest.MaxSampleRows)
		handler := ingest.NewHandler(cleaner, gen.Provider(), true)

		port := ingestionPort
		if port == 0 {
			port = 8001
		}
		return serveHTTP(ctx, port, handler.Routes())
	},
}

func init() {
	ingestionCmd.Flags().IntVar(&ingestionPort, "port", 0, "server port (default 8001)")
	rootCmd.AddCommand(ingestionCmd)
}
