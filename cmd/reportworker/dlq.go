package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/processor"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

// newReprocessDlqCmd creates the one-shot DLQ reprocessing command
func newReprocessDlqCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess-dlq",
		Short: "Run a single DLQ reprocessing pass",
		Long: `Drains the dead letter queue once, giving every parked message another
chance. Messages that now validate are mapped and removed; the rest stay
parked for manual triage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReprocessDlq(cmd)
		},
	}
}

func runReprocessDlq(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	queueClient, err := createQueueClient(ctx)
	if err != nil {
		return err
	}
	metricsProvider, err := createMetricsProvider(ctx)
	if err != nil {
		return err
	}
	auditStore, err := createAuditStore(ctx)
	if err != nil {
		return err
	}

	opts := []processor.ReprocessorOption{
		processor.WithReprocessorMetrics(metricsProvider),
		processor.WithReprocessorReportSink(newLogSink()),
	}
	if auditStore != nil {
		opts = append(opts, processor.WithReprocessorFailureRecorder(auditStore))
	}

	reprocessor := processor.NewReprocessor(queueClient, report.NewMapper(cfg.Report.Environment), processor.ReprocessorConfig{
		DLQURL:            cfg.Queue.DLQURL,
		MaxMessages:       int32(cfg.Queue.MaxMessages),
		WaitSeconds:       int32(cfg.Queue.DLQWaitTime),
		VisibilityTimeout: int32(cfg.Queue.VisibilityTimeout),
	}, logger, opts...)

	result, err := reprocessor.Drain(ctx)
	if err != nil {
		return fmt.Errorf("DLQ reprocessing failed: %w", err)
	}

	fmt.Printf("Reprocessed %d DLQ messages: %d resolved, %d still parked\n",
		result.Received, result.Resolved, result.Unresolved)
	return nil
}

// newInspectDlqCmd creates the inspect DLQ command
func newInspectDlqCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect-dlq",
		Short: "Inspect messages in the dead letter queue",
		Long: `Peeks at parked DLQ messages without deleting them. Each message is
re-validated so the output shows why it is parked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectDlq(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum messages to inspect")

	return cmd
}

func runInspectDlq(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	queueClient, err := createQueueClient(ctx)
	if err != nil {
		return err
	}

	// Short visibility timeout so inspected messages reappear quickly
	messages, err := queueClient.Receive(ctx, cfg.Queue.DLQURL, int32(limit), int32(cfg.Queue.DLQWaitTime), 10)
	if err != nil {
		return fmt.Errorf("failed to receive DLQ messages: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println("No messages in DLQ")
		return nil
	}

	fmt.Printf("\n=== DLQ Messages (%s) ===\n\n", cfg.Queue.DLQURL)
	for i, msg := range messages {
		fmt.Printf("--- Message %d ---\n", i+1)
		fmt.Printf("Message ID: %s\n", msg.MessageID)

		if _, verr := report.ParseAndValidate(msg.Body); verr != nil {
			fmt.Printf("Parked because: %s (%s)\n", verr.Error(), report.FailureKind(verr))
		} else {
			fmt.Printf("Parked because: validates now, next reprocessing pass will resolve it\n")
		}

		// Pretty print the body
		var prettyBody map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Body), &prettyBody); err == nil {
			prettyJSON, _ := json.MarshalIndent(prettyBody, "", "  ")
			fmt.Printf("Body:\n%s\n", string(prettyJSON))
		} else {
			fmt.Printf("Body: %s\n", msg.Body)
		}
		fmt.Println()
	}

	fmt.Printf("Inspected %d messages at %s, none were deleted\n", len(messages), time.Now().Format(time.RFC3339))
	return nil
}
