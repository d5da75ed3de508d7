package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

func testReprocessorConfig() ReprocessorConfig {
	return ReprocessorConfig{
		DLQURL:            testDLQURL,
		MaxMessages:       10,
		WaitSeconds:       0,
		VisibilityTimeout: 30,
		Interval:          time.Minute,
	}
}

func TestDrainResolvesRecoveredMessages(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d1", ReceiptHandle: "dlq-rh-1", Body: validBody(t, nil)},
		contracts.Message{MessageID: "d2", ReceiptHandle: "dlq-rh-2", Body: validBody(t, map[string]any{"appointmentDate": nil})},
	)

	sink := &recordingSink{}
	audit := &recordingAudit{}
	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop(),
		WithReprocessorReportSink(sink),
		WithReprocessorFailureRecorder(audit),
	)

	result, err := r.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result.Received != 2 || result.Resolved != 1 || result.Unresolved != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	deleted := q.deleted(testDLQURL)
	if len(deleted) != 1 || deleted[0] != "dlq-rh-1" {
		t.Errorf("expected only dlq-rh-1 deleted, got %v", deleted)
	}
	if len(q.deleted(testQueueURL)) != 0 {
		t.Errorf("reprocessor must never touch the primary queue, deleted %v", q.deleted(testQueueURL))
	}
	if len(sink.records) != 1 || sink.records[0].ID != "pet-42" {
		t.Errorf("expected one published record for pet-42, got %+v", sink.records)
	}

	failures := audit.recorded()
	if len(failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(failures))
	}
	if failures[0].Source != "dlq" || failures[0].Kind != "missing_field" {
		t.Errorf("unexpected failure record: %+v", failures[0])
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	q := newFakeQueue()
	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop())

	result, err := r.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result != (DrainResult{}) {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestDrainConsumesMultipleBatches(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d1", ReceiptHandle: "dlq-rh-1", Body: validBody(t, nil)},
	)
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d2", ReceiptHandle: "dlq-rh-2", Body: validBody(t, map[string]any{"petId": "pet-99"})},
	)

	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop())

	result, err := r.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result.Received != 2 || result.Resolved != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := q.deleted(testDLQURL); len(got) != 2 {
		t.Errorf("expected 2 DLQ deletes, got %v", got)
	}
}

func TestDrainSurfacesReceiveError(t *testing.T) {
	q := newFakeQueue()
	q.enqueueError(testDLQURL, errors.New("service unavailable"))

	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop())

	if _, err := r.Drain(context.Background()); err == nil {
		t.Fatal("expected receive error to surface")
	}
}

func TestDrainLeavesMessageWhenPublishFails(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d1", ReceiptHandle: "dlq-rh-1", Body: validBody(t, nil)},
	)

	sink := &recordingSink{err: errors.New("downstream unavailable")}
	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop(),
		WithReprocessorReportSink(sink),
	)

	result, err := r.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result.Resolved != 0 || result.Unresolved != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(q.deleted(testDLQURL)) != 0 {
		t.Errorf("message must stay parked when publish fails, deleted %v", q.deleted(testDLQURL))
	}
}

func TestDrainFinishesInFlightDeleteOnCancel(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d1", ReceiptHandle: "dlq-rh-1", Body: validBody(t, nil)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation lands after the record is published but before the delete.
	sink := ReportSinkFunc(func(ctx context.Context, record report.ReportRecord) error {
		cancel()
		return nil
	})
	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop(),
		WithReprocessorReportSink(sink),
	)

	result, err := r.Drain(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Resolved != 1 {
		t.Errorf("expected the in-flight message resolved, got %+v", result)
	}
	if got := q.deleted(testDLQURL); len(got) != 1 || got[0] != "dlq-rh-1" {
		t.Errorf("expected dlq-rh-1 deleted despite cancellation, got %v", got)
	}
	if n := q.cancelledDeleteCount(); n != 0 {
		t.Errorf("delete ran with a cancelled context %d times", n)
	}
}

func TestDrainCountsDeleteFailureAsUnresolved(t *testing.T) {
	q := newFakeQueue()
	q.deleteErr = errors.New("receipt handle is invalid")
	q.enqueueBatch(testDLQURL,
		contracts.Message{MessageID: "d1", ReceiptHandle: "dlq-rh-1", Body: validBody(t, nil)},
	)

	m := newRecordingMetrics()
	r := NewReprocessor(q, report.NewMapper("test"), testReprocessorConfig(), zerolog.Nop(),
		WithReprocessorMetrics(m),
	)

	result, err := r.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if result.Resolved != 0 || result.Unresolved != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dlqResolved != 0 {
		t.Errorf("resolved counted %d times despite failed delete", m.dlqResolved)
	}
	if m.deleteFailures != 1 {
		t.Errorf("expected 1 delete failure, got %d", m.deleteFailures)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newFakeQueue()
	cfg := testReprocessorConfig()
	cfg.Interval = time.Millisecond
	r := NewReprocessor(q, report.NewMapper("test"), cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reprocessor did not stop")
	}
}
