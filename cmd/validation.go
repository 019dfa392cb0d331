package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valid8/valid8/internal/validate"
	"github.com/valid8/valid8/pkg/npi"
)

var (
	validationPort        int
	validationConcurrency int
)

var validationCmd = &cobra.Command{
	Use:   "validation",
	Short: "Start the validation service",
	Long:  "Serves the reconciliation endpoint: cleaned records are cross-checked against the NPI registry and judged by the LLM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("validation"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		invoker, gen, err := buildInvoker(cfg)
		if err != nil {
			return err
		}

		registry := npi.NewClient(npi.WithBaseURL(cfg.NPI.BaseURL))
		validator := validate.NewValidator(invoker, registry, validationConcurrency)
		handler := validate.NewHandler(validator, gen.Provider())

		port := validationPort
		if port == 0 {
			port = 8002
		}
		return serveHTTP(ctx, port, handler.Routes())
	},
}

func init() {
	validationCmd.Flags().IntVar(&validationPort, "port", 0, "server port (default 8002)")
	validationCmd.Flags().IntVar(&validationConcurrency, "concurrency", 0, "max records validated in parallel")
	rootCmd.AddCommand(validationCmd)
}
