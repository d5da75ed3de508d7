package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

// newSendCmd creates the send command for manual re-injection and testing
func newSendCmd() *cobra.Command {
	var (
		body   string
		sample bool
		toDLQ  bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an appointment event to the queue",
		Long: `Sends a raw message body to the appointment queue. Use --sample to send
a generated valid event, --body for an explicit payload, or pipe the body on
stdin. With --dlq the message goes to the dead letter queue instead, which is
useful for re-injecting a fixed payload next to its broken original.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), body, sample, toDLQ)
		},
	}

	cmd.Flags().StringVarP(&body, "body", "b", "", "Raw message body to send")
	cmd.Flags().BoolVar(&sample, "sample", false, "Send a generated valid sample event")
	cmd.Flags().BoolVar(&toDLQ, "dlq", false, "Send to the dead letter queue instead of the primary queue")

	return cmd
}

func runSend(ctx context.Context, body string, sample, toDLQ bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch {
	case sample && body != "":
		return fmt.Errorf("--sample and --body are mutually exclusive")
	case sample:
		raw, err := json.Marshal(sampleEvent())
		if err != nil {
			return fmt.Errorf("failed to marshal sample event: %w", err)
		}
		body = string(raw)
	case body == "":
		stdin, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read body from stdin: %w", err)
		}
		body = string(stdin)
	}

	if body == "" {
		return fmt.Errorf("nothing to send, use --body, --sample, or pipe a payload on stdin")
	}

	// Warn up front rather than enqueue something destined for the DLQ
	if _, err := report.ParseAndValidate(body); err != nil {
		logger.Warn().
			Str("kind", report.FailureKind(err)).
			Err(err).
			Msg("Payload does not validate, it will end up in the DLQ")
	}

	queueClient, err := createQueueClient(ctx)
	if err != nil {
		return err
	}

	queueURL := cfg.Queue.URL
	if toDLQ {
		queueURL = cfg.Queue.DLQURL
	}

	messageID, err := queueClient.Send(ctx, queueURL, body)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	fmt.Printf("Sent message %s to %s\n", messageID, queueURL)
	return nil
}

func sampleEvent() map[string]string {
	return map[string]string{
		"petId":                  "pet-" + uuid.NewString()[:8],
		"petName":                "Leo",
		"petType":                "cat",
		"ownerId":                "owner-1",
		"ownerName":              "George",
		"ownerSurname":           "Franklin",
		"vetId":                  "vet-1",
		"vetName":                "Helen",
		"vetSurname":             "Leary",
		"appointmentDate":        "2026-09-14",
		"appointmentTime":        "10:30",
		"appointmentType":        "checkup",
		"appointmentDescription": "annual exam",
	}
}
