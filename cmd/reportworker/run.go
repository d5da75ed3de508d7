package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/metrics"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/processor"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/queue"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

// newRunCmd creates the run command: the poll loop and the DLQ reprocessor in
// one process.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the appointment event processor",
		Long: `Polls the appointment queue, validates and maps events into report
records, and reprocesses the dead letter queue on an interval. Designed to
run under Supervisor or as a container entrypoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context) error {
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

	mapper := report.NewMapper(cfg.Report.Environment)
	sink := newLogSink()

	pollerOpts := []processor.PollerOption{
		processor.WithMetrics(metricsProvider),
		processor.WithReportSink(sink),
	}
	reprocessorOpts := []processor.ReprocessorOption{
		processor.WithReprocessorMetrics(metricsProvider),
		processor.WithReprocessorReportSink(sink),
	}
	if auditStore != nil {
		pollerOpts = append(pollerOpts, processor.WithFailureRecorder(auditStore))
		reprocessorOpts = append(reprocessorOpts, processor.WithReprocessorFailureRecorder(auditStore))
	}

	poller := processor.NewPoller(queueClient, mapper, processor.PollerConfig{
		QueueURL:          cfg.Queue.URL,
		MaxMessages:       int32(cfg.Queue.MaxMessages),
		WaitSeconds:       int32(cfg.Queue.WaitTime),
		VisibilityTimeout: int32(cfg.Queue.VisibilityTimeout),
		IdleDelay:         cfg.GetIdleDelay(),
	}, logger, pollerOpts...)

	reprocessor := processor.NewReprocessor(queueClient, mapper, processor.ReprocessorConfig{
		DLQURL:            cfg.Queue.DLQURL,
		MaxMessages:       int32(cfg.Queue.MaxMessages),
		WaitSeconds:       int32(cfg.Queue.DLQWaitTime),
		VisibilityTimeout: int32(cfg.Queue.VisibilityTimeout),
		Interval:          cfg.GetDLQInterval(),
	}, logger, reprocessorOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		return reprocessor.Run(gctx)
	})
	g.Go(func() error {
		return runDepthMonitor(gctx, queueClient, metricsProvider)
	})
	if cfg.Metrics.Prometheus.Enabled && cfg.Metrics.Prometheus.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsProvider)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Worker stopped")
	return nil
}

// newLogSink emits each report record as a structured log entry. Report
// persistence is intentionally out of scope; downstream consumers pick the
// records up from the log stream.
func newLogSink() processor.ReportSink {
	sinkLogger := logger.With().Str("component", "report-sink").Logger()
	return processor.ReportSinkFunc(func(ctx context.Context, record report.ReportRecord) error {
		sinkLogger.Info().
			Str("report_id", record.ID).
			Interface("report", record).
			Msg("Report record produced")
		return nil
	})
}

// runDepthMonitor refreshes the queue and DLQ depth gauges once a minute
func runDepthMonitor(ctx context.Context, client *queue.Client, provider metrics.Provider) error {
	if !provider.Enabled() {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if depth, err := client.QueueDepth(ctx, cfg.Queue.URL); err != nil {
				logger.Warn().Err(err).Msg("Failed to get queue depth")
			} else {
				provider.SetQueueDepth(ctx, cfg.Queue.URL, float64(depth))
			}
			if depth, err := client.QueueDepth(ctx, cfg.Queue.DLQURL); err != nil {
				logger.Warn().Err(err).Msg("Failed to get DLQ depth")
			} else {
				provider.SetDLQDepth(ctx, cfg.Queue.DLQURL, float64(depth))
			}
		}
	}
}

func serveMetrics(ctx context.Context, provider metrics.Provider) error {
	hp, ok := provider.(metrics.HTTPProvider)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", hp.Handler())
	srv := &http.Server{
		Addr:    cfg.Metrics.Prometheus.Addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("Serving Prometheus metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
