package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/server"
	"github.com/de-tools/cloud-sentry/pkg/services/config"
	"github.com/de-tools/cloud-sentry/pkg/services/sweep"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Serve the HTTP trigger endpoint for compliance sweeps",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (environment variables apply on top)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// deadlineRunner wraps the sweep runner so every HTTP-triggered run carries
// the configured run deadline.
type deadlineRunner struct {
	runner   *sweep.Runner
	deadline time.Duration
}

func (r *deadlineRunner) Run(ctx context.Context) (domain.RunSummary, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()
	return r.runner.Run(runCtx)
}

func runServer(cmd *cobra.Command, _ []string) error {
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

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")
	if host == "" || port == "" {
		logger.Error().Msgf("Missing server configuration from .env file")
		os.Exit(1)
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Sweeps: &deadlineRunner{runner: runner, deadline: cfg.Sweep.RunDeadline},
		},
	})

	return api.Start()
}
