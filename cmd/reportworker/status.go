package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/queue"
)

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display queue and DLQ depth",
		Long: `Shows the approximate message depth of the appointment queue and its
dead letter queue. Pass --queue to look a queue up by name instead of using
the configured URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), queueName)
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Queue name to resolve instead of the configured URL")

	return cmd
}

func runStatus(ctx context.Context, queueName string) error {
	queueClient, err := createQueueClient(ctx)
	if err != nil {
		return err
	}

	queueURL := cfg.Queue.URL
	dlqURL := cfg.Queue.DLQURL

	if queueName != "" {
		sqsClient, err := createSQSClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create SQS client: %w", err)
		}
		cache, err := createRedisCache(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, resolving without cache")
		}
		var resolver *queue.Resolver
		if cache != nil {
			resolver = queue.NewResolver(sqsClient, cache, logger)
		} else {
			resolver = queue.NewResolver(sqsClient, nil, logger)
		}

		if queueURL, err = resolver.Resolve(ctx, queueName); err != nil {
			return fmt.Errorf("failed to resolve queue %s: %w", queueName, err)
		}
		if dlqURL, err = resolver.ResolveDLQ(ctx, queueName); err != nil {
			logger.Warn().Err(err).Msg("Failed to resolve DLQ")
			dlqURL = ""
		}
	} else if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	depth, err := queueClient.QueueDepth(ctx, queueURL)
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}

	dlqDepth := int64(-1)
	if dlqURL != "" {
		if dlqDepth, err = queueClient.QueueDepth(ctx, dlqURL); err != nil {
			logger.Warn().Err(err).Msg("Failed to get DLQ depth")
			dlqDepth = -1
		}
	}

	fmt.Printf("\n=== Queue Status ===\n")
	fmt.Printf("Queue: %s\n", queueURL)
	fmt.Printf("Messages in Queue: %d\n", depth)
	if dlqDepth >= 0 {
		fmt.Printf("Messages in DLQ: %d\n", dlqDepth)
		if dlqDepth > 0 {
			fmt.Printf("WARNING: DLQ has messages that need attention!\n")
		}
	}
	fmt.Printf("====================\n\n")

	return nil
}
