// Package queue provides the AWS SQS adapter for the event processor.
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
)

// API is the subset of the SQS client surface the adapter uses. *sqs.Client
// satisfies it.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

const defaultRetryBase = 500 * time.Millisecond

// Client adapts SQS to the contracts.QueueClient interface, retrying
// transient provider failures with bounded attempts. It is safe for
// concurrent use; the underlying SQS client is the only shared resource.
type Client struct {
	api         API
	logger      zerolog.Logger
	maxAttempts int
	retryBase   time.Duration
}

// NewClient creates a queue adapter. maxAttempts bounds the retries of
// transient failures per operation; values below 1 are treated as 1.
func NewClient(api API, maxAttempts int, logger zerolog.Logger) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		api:         api,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryBase:   defaultRetryBase,
	}
}

// Ensure Client implements contracts.QueueClient
var _ contracts.QueueClient = (*Client)(nil)

// Receive long-polls the queue for up to waitSeconds. An empty batch is a
// normal outcome, not an error. At most 10 messages are returned per call.
func (c *Client) Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds, visibilityTimeout int32) ([]contracts.Message, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue URL is required")
	}
	if maxMessages > 10 {
		maxMessages = 10
	}
	if maxMessages < 1 {
		maxMessages = 1
	}

	var result *sqs.ReceiveMessageOutput
	err := c.withRetry(ctx, "receive", func() error {
		var err error
		result, err = c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(queueURL),
			MaxNumberOfMessages:   maxMessages,
			WaitTimeSeconds:       waitSeconds,
			VisibilityTimeout:     visibilityTimeout,
			MessageAttributeNames: []string{"All"},
			AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameAll},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	messages := make([]contracts.Message, len(result.Messages))
	for i, msg := range result.Messages {
		messages[i] = contracts.Message{
			MessageID:     aws.ToString(msg.MessageId),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Body:          aws.ToString(msg.Body),
			Attributes:    msg.Attributes,
		}
	}

	if len(messages) > 0 {
		c.logger.Debug().
			Int("count", len(messages)).
			Str("queue", queueURL).
			Msg("Received messages")
	}

	return messages, nil
}

// Delete acknowledges a delivery attempt. A stale or already-consumed receipt
// handle yields a DeleteError, which is never retried: the provider has
// already decided that message's fate.
func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	if queueURL == "" {
		return fmt.Errorf("queue URL is required")
	}

	err := c.withRetry(ctx, "delete", func() error {
		_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(queueURL),
			ReceiptHandle: aws.String(receiptHandle),
		})
		if err != nil && isStaleHandle(err) {
			return &DeleteError{Cause: err}
		}
		return err
	})
	return err
}

// Send enqueues a raw body, used for manual re-injection of repaired events
func (c *Client) Send(ctx context.Context, queueURL, body string) (string, error) {
	if queueURL == "" {
		return "", fmt.Errorf("queue URL is required")
	}

	var result *sqs.SendMessageOutput
	err := c.withRetry(ctx, "send", func() error {
		var err error
		result, err = c.api.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(body),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	messageID := aws.ToString(result.MessageId)
	c.logger.Info().
		Str("queue", queueURL).
		Str("message_id", messageID).
		Msg("Sent message")
	return messageID, nil
}

// QueueDepth returns the approximate number of visible messages in the queue
func (c *Client) QueueDepth(ctx context.Context, queueURL string) (int64, error) {
	result, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get queue attributes: %w", err)
	}

	countStr := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	count, err := strconv.ParseInt(countStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse message count: %w", err)
	}
	return count, nil
}

// withRetry runs fn, retrying transient failures with doubling backoff up to
// the configured attempt bound. Non-transient errors surface immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.retryBase
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isTransient(err) {
			return err
		}
		if attempt < c.maxAttempts {
			c.logger.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Err(err).
				Msg("Transient queue error, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}
	return &TransientQueueError{Op: op, Attempts: c.maxAttempts, Cause: err}
}
