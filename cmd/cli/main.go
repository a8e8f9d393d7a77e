package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/cloud-sentry/pkg/services/config"
	"github.com/de-tools/cloud-sentry/pkg/services/sweep"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "sentry",
		Short: "Run one S3 compliance sweep and dispatch the evidence",
		RunE:  runSweep,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (environment variables apply on top)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	runner, err := sweep.NewDefaultRunner(ctx, cfg)
	if err != nil {
		return err
	}

	// The whole run is bound by the configured deadline: work that would
	// overrun it is abandoned and reported incomplete.
	runCtx, cancel := context.WithTimeout(ctx, cfg.Sweep.RunDeadline)
	defer cancel()

	summary, err := runner.Run(runCtx)
	if err != nil {
		return err
	}

	logger.Info().Msgf("Successfully processed %d buckets.", summary.Total)
	return nil
}
