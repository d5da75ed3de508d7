// Package processor contains the main polling loop and the DLQ reprocessor.
package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/metrics"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/queue"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

// PollerConfig holds the knobs for the primary queue polling loop.
type PollerConfig struct {
	QueueURL          string
	MaxMessages       int32
	WaitSeconds       int32
	VisibilityTimeout int32
	// IdleDelay is the pause after an empty receive or a receive failure
	IdleDelay time.Duration
}

// Poller drives the primary appointment-event queue. Each received message is
// validated, mapped into a report record, and only then acknowledged. Messages
// that fail validation are never deleted here; the provider's redrive policy
// moves them to the DLQ once their receive count is exhausted.
type Poller struct {
	queue   contracts.QueueClient
	mapper  *report.Mapper
	sink    ReportSink
	audit   contracts.FailureRecorder
	metrics metrics.Provider
	logger  zerolog.Logger
	cfg     PollerConfig
}

// ReportSink receives every successfully mapped report record.
type ReportSink interface {
	Publish(ctx context.Context, record report.ReportRecord) error
}

// ReportSinkFunc adapts a function to the ReportSink interface
type ReportSinkFunc func(ctx context.Context, record report.ReportRecord) error

func (f ReportSinkFunc) Publish(ctx context.Context, record report.ReportRecord) error {
	return f(ctx, record)
}

// NewPoller creates a poller for the primary queue. The audit recorder and
// sink may be nil.
func NewPoller(q contracts.QueueClient, mapper *report.Mapper, cfg PollerConfig, logger zerolog.Logger, opts ...PollerOption) *Poller {
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 2 * time.Second
	}
	p := &Poller{
		queue:   q,
		mapper:  mapper,
		metrics: metrics.NewNoopProvider(),
		logger:  logger.With().Str("component", "poller").Logger(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollerOption configures optional poller collaborators
type PollerOption func(*Poller)

// WithMetrics attaches a metrics provider to the poller
func WithMetrics(m metrics.Provider) PollerOption {
	return func(p *Poller) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithFailureRecorder attaches a failure audit store to the poller
func WithFailureRecorder(r contracts.FailureRecorder) PollerOption {
	return func(p *Poller) {
		p.audit = r
	}
}

// WithReportSink attaches a sink for mapped report records
func WithReportSink(s ReportSink) PollerOption {
	return func(p *Poller) {
		p.sink = s
	}
}

// pollerStats counters are atomic because batch messages are processed
// concurrently
type pollerStats struct {
	totalProcessed   atomic.Int64
	success          atomic.Int64
	validationErrors atomic.Int64
	transientErrors  atomic.Int64
	deleteErrors     atomic.Int64
}

// Run polls the primary queue until ctx is cancelled. Returns ctx.Err() on
// shutdown; a batch in flight when cancellation arrives is finished first.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Str("queue_url", p.cfg.QueueURL).
		Int32("max_messages", p.cfg.MaxMessages).
		Int32("wait_seconds", p.cfg.WaitSeconds).
		Msg("Starting appointment event poller")

	var stats pollerStats

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().
				Int64("total_processed", stats.totalProcessed.Load()).
				Int64("success", stats.success.Load()).
				Int64("validation_errors", stats.validationErrors.Load()).
				Int64("transient_errors", stats.transientErrors.Load()).
				Int64("delete_errors", stats.deleteErrors.Load()).
				Msg("Poller shutting down")
			return ctx.Err()
		default:
		}

		messages, err := p.queue.Receive(ctx, p.cfg.QueueURL, p.cfg.MaxMessages, p.cfg.WaitSeconds, p.cfg.VisibilityTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if queue.IsTransientQueueError(err) {
				stats.transientErrors.Add(1)
				p.metrics.IncTransientErrors(ctx, p.cfg.QueueURL)
			}
			p.logger.Error().Err(err).Msg("Failed to receive messages")
			p.idle(ctx)
			continue
		}

		if len(messages) == 0 {
			p.idle(ctx)
			continue
		}

		p.logger.Debug().Int("count", len(messages)).Msg("Received messages")
		p.metrics.IncEventsReceived(ctx, p.cfg.QueueURL, len(messages))

		p.processBatch(ctx, messages, &stats)
	}
}

// drainGracePeriod bounds how long in-flight messages may keep running once
// shutdown has been requested
const drainGracePeriod = 30 * time.Second

// processBatch fans the batch out across goroutines and waits for every
// message before the next receive. A failed message never stops its siblings.
// The batch runs on a context detached from shutdown cancellation: a message
// that has already been validated and published must get its delete through,
// or it comes back as a duplicate.
func (p *Poller) processBatch(ctx context.Context, messages []contracts.Message, stats *pollerStats) {
	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainGracePeriod)
	defer cancel()

	var g errgroup.Group
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			stats.totalProcessed.Add(1)
			p.handleMessage(batchCtx, msg, stats)
			return nil
		})
	}
	// handleMessage never returns an error, Wait is only the barrier
	_ = g.Wait()
}

// handleMessage processes one delivery attempt. The message is deleted from
// the queue only after the report record has been produced.
func (p *Poller) handleMessage(ctx context.Context, msg contracts.Message, stats *pollerStats) {
	startTime := time.Now()

	event, err := report.ParseAndValidate(msg.Body)
	if err != nil {
		stats.validationErrors.Add(1)
		p.recordValidationFailure(ctx, msg, "primary", p.cfg.QueueURL, err)
		return
	}

	record := p.mapper.Map(event)

	if p.sink != nil {
		if err := p.sink.Publish(ctx, record); err != nil {
			// Leave the message in place so the next delivery retries the publish
			stats.transientErrors.Add(1)
			p.metrics.IncTransientErrors(ctx, p.cfg.QueueURL)
			p.logger.Error().
				Str("message_id", msg.MessageID).
				Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
				Str("report_id", record.ID).
				Err(err).
				Msg("Failed to publish report, leaving message for redelivery")
			return
		}
	}

	duration := time.Since(startTime)

	if err := p.queue.Delete(ctx, p.cfg.QueueURL, msg.ReceiptHandle); err != nil {
		stats.deleteErrors.Add(1)
		p.metrics.IncDeleteFailures(ctx, p.cfg.QueueURL)
		p.logger.Error().
			Str("message_id", msg.MessageID).
			Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
			Err(err).
			Msg("Failed to delete processed message, duplicate delivery possible")
	} else {
		stats.success.Add(1)
		p.metrics.IncReportsMapped(ctx, p.cfg.QueueURL)
	}

	p.metrics.ObserveProcessingDuration(ctx, p.cfg.QueueURL, float64(duration.Milliseconds()))

	p.logger.Info().
		Str("message_id", msg.MessageID).
		Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
		Str("report_id", record.ID).
		Str("pet", record.PetInfo.Name).
		Str("appointment_date", record.Appointment.Date).
		Dur("duration", duration).
		Msg("Appointment event processed")
}

func (p *Poller) recordValidationFailure(ctx context.Context, msg contracts.Message, source, queueURL string, err error) {
	kind := report.FailureKind(err)
	p.metrics.IncValidationFailures(ctx, queueURL, kind)

	traceID := uuid.NewString()
	p.logger.Warn().
		Str("message_id", msg.MessageID).
		Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
		Str("kind", kind).
		Str("trace_id", traceID).
		Err(err).
		Msg("Validation failed, leaving message for redrive")

	if p.audit == nil {
		return
	}
	failure := contracts.ProcessingFailure{
		MessageID:  msg.MessageID,
		QueueURL:   queueURL,
		Source:     source,
		Kind:       kind,
		Reason:     err.Error(),
		TraceID:    traceID,
		OccurredAt: time.Now().UTC(),
	}
	if auditErr := p.audit.RecordFailure(ctx, failure); auditErr != nil {
		p.logger.Warn().
			Str("message_id", msg.MessageID).
			Err(auditErr).
			Msg("Failed to record processing failure")
	}
}

// receiptPrefix shortens a receipt handle for log correlation; full SQS
// handles run to over a thousand characters
func receiptPrefix(handle string) string {
	if len(handle) <= 16 {
		return handle
	}
	return handle[:16]
}

// idle pauses between polls without blocking shutdown
func (p *Poller) idle(ctx context.Context) {
	timer := time.NewTimer(p.cfg.IdleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
