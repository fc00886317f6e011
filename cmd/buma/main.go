package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SPDeetman/BUMA/internal/logging"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "buma",
		Short: "Building stock and material flow model",
		Long: `buma projects building floor area and the materials embodied in it.

It extends observed drivers back to 1721, calibrates per-segment stock
targets, solves a dynamic stock model per segment and converts the cohorts
into material stock, inflow and outflow with vintage-specific intensities.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(intensityCmd())
	return rootCmd
}

func projectDir(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func runCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [project-dir]",
		Short: "Run the model and write the output tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.workersSet = cmd.Flags().Changed("workers")
			return runModel(cmd.Context(), cmd.OutOrStdout(), projectDir(args), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Output directory (default from model.yaml)")
	cmd.Flags().StringSliceVarP(&flags.formats, "format", "f", nil, "Output formats: csv, sqlite")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Concurrent segment solves (0 = one per CPU)")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-dir]",
		Short: "Validate model.yaml and the input tables without running the model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), projectDir(args))
		},
	}
}

func intensityCmd() *cobra.Command {
	var q intensityQuery

	cmd := &cobra.Command{
		Use:   "intensity [project-dir]",
		Short: "Show the material intensity curve that applies to a segment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntensity(cmd.OutOrStdout(), projectDir(args), q)
		},
	}

	cmd.Flags().StringVarP(&q.typ, "type", "t", "", "Building type (required)")
	cmd.Flags().StringVarP(&q.region, "region", "r", "", "Region")
	cmd.Flags().StringVarP(&q.area, "area", "a", "", "Area: rural, urban or commercial")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
