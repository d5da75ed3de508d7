// Package contracts defines the interfaces between the processing pipeline
// and its collaborators (queue provider, caches, audit storage).
package contracts

import (
	"context"
	"time"
)

// Message represents a received message from the queue
type Message struct {
	// MessageID is the provider-assigned unique message identifier
	MessageID string
	// ReceiptHandle is the token required to delete this delivery attempt
	ReceiptHandle string
	// Body is the raw message body
	Body string
	// Attributes contains provider message attributes
	Attributes map[string]string
}

// QueueClient defines the operations the processing pipeline needs from the
// queue provider. The queue URL is part of every call: the poll loop and the
// DLQ reprocessor must never share or conflate queue identity.
type QueueClient interface {
	// Receive long-polls queueURL for up to waitSeconds, returning at most
	// maxMessages messages. An empty result is not an error.
	Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds, visibilityTimeout int32) ([]Message, error)
	// Delete acknowledges a delivery attempt by its receipt handle
	Delete(ctx context.Context, queueURL, receiptHandle string) error
	// Send enqueues a raw body, used for manual re-injection
	Send(ctx context.Context, queueURL, body string) (string, error)
}

// Cache is a small key-value cache used for queue URL resolution
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ProcessingFailure describes one failed processing attempt, recorded for
// manual DLQ triage
type ProcessingFailure struct {
	MessageID  string
	QueueURL   string
	Source     string // "primary" or "dlq"
	Kind       string // "malformed_payload" or "missing_field"
	Reason     string
	TraceID    string
	OccurredAt time.Time
}

// FailureRecorder persists processing failures for operator investigation
type FailureRecorder interface {
	RecordFailure(ctx context.Context, failure ProcessingFailure) error
}
