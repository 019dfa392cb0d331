package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/ingest"
	"github.com/valid8/valid8/internal/model"
	"github.com/valid8/valid8/internal/tabular"
	"github.com/valid8/valid8/internal/validate"
	"github.com/valid8/valid8/pkg/npi"
)

var runConcurrency int

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run the full pipeline locally on one file",
	Long:  "Cleans and validates a provider CSV or XLSX in-process, without the HTTP services, and prints the report as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		var rows [][]string
		switch {
		case strings.HasSuffix(strings.ToLower(path), ".csv"):
			rows, err = tabular.DecodeCSV(data)
		case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
			rows, err = tabular.DecodeXLSX(data)
		default:
			return eris.New("only CSV and XLSX files are supported")
		}
		if err != nil {
			return err
		}

		invoker, _, err := buildInvoker(cfg)
		if err != nil {
			return err
		}

		cleaner := ingest.NewCleaner(invoker, cfg.Ingest.MaxSampleRows)
		result, err := cleaner.Clean(ctx, rows)
		if err != nil {
			return err
		}
		zap.L().Info("cleaning complete",
			zap.Int("providers", len(result.Providers)),
			zap.Int("dropped", result.Dropped))

		report := &model.PipelineReport{
			Status:             "success",
			CleanedCount:       len(result.Providers),
			CleanedProviders:   result.Providers,
			ValidatedProviders: []model.ValidationResult{},
		}

		if len(result.Providers) > 0 {
			registry := npi.NewClient(npi.WithBaseURL(cfg.NPI.BaseURL))
			validator := validate.NewValidator(invoker, registry, runConcurrency)

			records := make([]map[string]any, len(result.Providers))
			for i, p := range result.Providers {
				raw, err := json.Marshal(p)
				if err != nil {
					return eris.Wrap(err, "encode provider")
				}
				if err := json.Unmarshal(raw, &records[i]); err != nil {
					return eris.Wrap(err, "decode provider")
				}
			}

			report.ValidatedProviders = validator.ValidateAll(ctx, records)
			report.ValidatedCount = len(report.ValidatedProviders)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode report")
	},
}

func init() {
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max records validated in parallel")
	rootCmd.AddCommand(runCmd)
}
