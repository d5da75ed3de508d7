package processor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/metrics"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

// ReprocessorConfig holds the knobs for the DLQ reprocessing pass.
type ReprocessorConfig struct {
	DLQURL            string
	MaxMessages       int32
	WaitSeconds       int32
	VisibilityTimeout int32
	// Interval is the period between reprocessing passes
	Interval time.Duration
}

// Reprocessor periodically drains the DLQ, giving parked messages another
// chance. A message that now validates is mapped and removed from the DLQ;
// one that still fails stays parked for manual triage. The reprocessor only
// ever deletes from the DLQ, never from the primary queue.
type Reprocessor struct {
	queue   contracts.QueueClient
	mapper  *report.Mapper
	sink    ReportSink
	audit   contracts.FailureRecorder
	metrics metrics.Provider
	logger  zerolog.Logger
	cfg     ReprocessorConfig
}

// NewReprocessor creates a DLQ reprocessor. The same options as the poller
// apply through the Reprocessor setters below.
func NewReprocessor(q contracts.QueueClient, mapper *report.Mapper, cfg ReprocessorConfig, logger zerolog.Logger, opts ...ReprocessorOption) *Reprocessor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	r := &Reprocessor{
		queue:   q,
		mapper:  mapper,
		metrics: metrics.NewNoopProvider(),
		logger:  logger.With().Str("component", "dlq-reprocessor").Logger(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReprocessorOption configures optional reprocessor collaborators
type ReprocessorOption func(*Reprocessor)

// WithReprocessorMetrics attaches a metrics provider
func WithReprocessorMetrics(m metrics.Provider) ReprocessorOption {
	return func(r *Reprocessor) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithReprocessorFailureRecorder attaches a failure audit store
func WithReprocessorFailureRecorder(rec contracts.FailureRecorder) ReprocessorOption {
	return func(r *Reprocessor) {
		r.audit = rec
	}
}

// WithReprocessorReportSink attaches a sink for mapped report records
func WithReprocessorReportSink(s ReportSink) ReprocessorOption {
	return func(r *Reprocessor) {
		r.sink = s
	}
}

// Run reprocesses the DLQ on a fixed interval until ctx is cancelled.
func (r *Reprocessor) Run(ctx context.Context) error {
	r.logger.Info().
		Str("dlq_url", r.cfg.DLQURL).
		Dur("interval", r.cfg.Interval).
		Msg("Starting DLQ reprocessor")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("DLQ reprocessor shutting down")
			return ctx.Err()
		case <-ticker.C:
			if result, err := r.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Error().Err(err).Msg("DLQ reprocessing pass failed")
			} else if result.Received > 0 {
				r.logger.Info().
					Int("received", result.Received).
					Int("resolved", result.Resolved).
					Int("unresolved", result.Unresolved).
					Msg("DLQ reprocessing pass complete")
			}
		}
	}
}

// DrainResult summarizes one reprocessing pass over the DLQ.
type DrainResult struct {
	Received   int
	Resolved   int
	Unresolved int
}

// Drain receives DLQ batches until the queue reports empty, reprocessing each
// message. Exported so the CLI can run a one-shot pass.
func (r *Reprocessor) Drain(ctx context.Context) (DrainResult, error) {
	var result DrainResult

	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		messages, err := r.queue.Receive(ctx, r.cfg.DLQURL, r.cfg.MaxMessages, r.cfg.WaitSeconds, r.cfg.VisibilityTimeout)
		if err != nil {
			return result, err
		}
		if len(messages) == 0 {
			return result, nil
		}

		result.Received += len(messages)

		// Messages already received must finish even if shutdown lands
		// mid-batch, otherwise a resolved message loses its delete and
		// comes back as a duplicate
		batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainGracePeriod)
		for _, msg := range messages {
			if r.reprocessMessage(batchCtx, msg) {
				result.Resolved++
			} else {
				result.Unresolved++
			}
		}
		cancel()
	}
}

// reprocessMessage gives one parked message another chance. Returns true when
// the message was resolved and removed from the DLQ.
func (r *Reprocessor) reprocessMessage(ctx context.Context, msg contracts.Message) bool {
	event, err := report.ParseAndValidate(msg.Body)
	if err != nil {
		kind := report.FailureKind(err)
		r.metrics.IncDLQUnresolved(ctx, r.cfg.DLQURL)
		r.metrics.IncValidationFailures(ctx, r.cfg.DLQURL, kind)
		r.logger.Debug().
			Str("message_id", msg.MessageID).
			Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
			Str("kind", kind).
			Err(err).
			Msg("DLQ message still invalid, leaving parked")
		r.recordFailure(ctx, msg, kind, err)
		return false
	}

	record := r.mapper.Map(event)

	if r.sink != nil {
		if err := r.sink.Publish(ctx, record); err != nil {
			r.metrics.IncDLQUnresolved(ctx, r.cfg.DLQURL)
			r.logger.Error().
				Str("message_id", msg.MessageID).
				Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
				Str("report_id", record.ID).
				Err(err).
				Msg("Failed to publish reprocessed report, leaving parked")
			return false
		}
	}

	if err := r.queue.Delete(ctx, r.cfg.DLQURL, msg.ReceiptHandle); err != nil {
		r.metrics.IncDeleteFailures(ctx, r.cfg.DLQURL)
		r.logger.Error().
			Str("message_id", msg.MessageID).
			Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
			Err(err).
			Msg("Failed to delete reprocessed DLQ message, it stays parked")
		return false
	}

	r.metrics.IncDLQResolved(ctx, r.cfg.DLQURL)
	r.metrics.IncReportsMapped(ctx, r.cfg.DLQURL)
	r.logger.Info().
		Str("message_id", msg.MessageID).
		Str("receipt_handle", receiptPrefix(msg.ReceiptHandle)).
		Str("report_id", record.ID).
		Msg("DLQ message resolved")
	return true
}

func (r *Reprocessor) recordFailure(ctx context.Context, msg contracts.Message, kind string, err error) {
	if r.audit == nil {
		return
	}
	failure := contracts.ProcessingFailure{
		MessageID:  msg.MessageID,
		QueueURL:   r.cfg.DLQURL,
		Source:     "dlq",
		Kind:       kind,
		Reason:     err.Error(),
		TraceID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
	}
	if auditErr := r.audit.RecordFailure(ctx, failure); auditErr != nil {
		r.logger.Warn().
			Str("message_id", msg.MessageID).
			Err(auditErr).
			Msg("Failed to record DLQ failure")
	}
}
