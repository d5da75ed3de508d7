// Package main provides the CLI entry point for the pet clinic event processor
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/config"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

func main() {
	// Initialize logger
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration from .env file and environment variables
	cfg = config.Load()
	logger.Debug().
		Str("queue_url", cfg.Queue.URL).
		Str("region", cfg.AWS.Region).
		Str("environment", cfg.Report.Environment).
		Msg("Configuration loaded")

	// Create root command
	rootCmd := &cobra.Command{
		Use:   "reportworker",
		Short: "Pet clinic appointment event processor",
		Long: `Report worker consumes veterinary appointment events from an SQS queue,
validates and maps them into report records, and periodically reprocesses
the dead letter queue.`,
	}

	// Add subcommands
	rootCmd.AddCommand(
		newRunCmd(),
		newReprocessDlqCmd(),
		newInspectDlqCmd(),
		newStatusCmd(),
		newSendCmd(),
	)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("Received shutdown signal")
		cancel()
	}()

	// Execute
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
