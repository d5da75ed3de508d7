package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/metrics"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/report"
)

const (
	testQueueURL = "https://sqs.us-east-2.amazonaws.com/123456789012/appointments"
	testDLQURL   = testQueueURL + "-dlq"
)

// fakeQueue is a scriptable QueueClient. Batches are consumed per queue URL
// in order; once exhausted, Receive returns empty batches. Delete honors its
// context the way the real client does.
type fakeQueue struct {
	mu               sync.Mutex
	batches          map[string][][]contracts.Message
	receiveErrs      map[string][]error
	deletes          map[string][]string
	sends            map[string][]string
	onReceive        func(queueURL string, call int)
	calls            int
	deleteErr        error
	cancelledDeletes int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		batches:     make(map[string][][]contracts.Message),
		receiveErrs: make(map[string][]error),
		deletes:     make(map[string][]string),
		sends:       make(map[string][]string),
	}
}

func (f *fakeQueue) enqueueBatch(queueURL string, msgs ...contracts.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[queueURL] = append(f.batches[queueURL], msgs)
}

func (f *fakeQueue) enqueueError(queueURL string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiveErrs[queueURL] = append(f.receiveErrs[queueURL], err)
}

func (f *fakeQueue) Receive(ctx context.Context, queueURL string, maxMessages, waitSeconds, visibilityTimeout int32) ([]contracts.Message, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	hook := f.onReceive

	if errs := f.receiveErrs[queueURL]; len(errs) > 0 {
		err := errs[0]
		f.receiveErrs[queueURL] = errs[1:]
		f.mu.Unlock()
		if hook != nil {
			hook(queueURL, call)
		}
		return nil, err
	}

	var batch []contracts.Message
	if pending := f.batches[queueURL]; len(pending) > 0 {
		batch = pending[0]
		f.batches[queueURL] = pending[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(queueURL, call)
	}
	return batch, nil
}

func (f *fakeQueue) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		f.cancelledDeletes++
		return ctx.Err()
	}
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes[queueURL] = append(f.deletes[queueURL], receiptHandle)
	return nil
}

func (f *fakeQueue) Send(ctx context.Context, queueURL, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[queueURL] = append(f.sends[queueURL], body)
	return "sent-id", nil
}

func (f *fakeQueue) deleted(queueURL string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes[queueURL]...)
}

func (f *fakeQueue) cancelledDeleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelledDeletes
}

// recordingMetrics counts the pipeline outcome metrics the tests care about
type recordingMetrics struct {
	*metrics.NoopProvider
	mu             sync.Mutex
	reportsMapped  int
	deleteFailures int
	dlqResolved    int
	dlqUnresolved  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{NoopProvider: metrics.NewNoopProvider()}
}

func (m *recordingMetrics) IncReportsMapped(ctx context.Context, queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportsMapped++
}

func (m *recordingMetrics) IncDeleteFailures(ctx context.Context, queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteFailures++
}

func (m *recordingMetrics) IncDLQResolved(ctx context.Context, queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlqResolved++
}

func (m *recordingMetrics) IncDLQUnresolved(ctx context.Context, queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlqUnresolved++
}

// recordingAudit captures failures handed to the audit store
type recordingAudit struct {
	mu       sync.Mutex
	failures []contracts.ProcessingFailure
}

func (r *recordingAudit) RecordFailure(ctx context.Context, failure contracts.ProcessingFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure)
	return nil
}

func (r *recordingAudit) recorded() []contracts.ProcessingFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contracts.ProcessingFailure(nil), r.failures...)
}

// recordingSink collects published report records
type recordingSink struct {
	mu      sync.Mutex
	records []report.ReportRecord
	err     error
}

func (s *recordingSink) Publish(ctx context.Context, record report.ReportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func validBody(t *testing.T, overrides map[string]any) string {
	t.Helper()
	payload := map[string]any{
		"petId":                  "pet-42",
		"petName":                "Leo",
		"petType":                "cat",
		"ownerId":                "owner-7",
		"ownerName":              "George",
		"ownerSurname":           "Franklin",
		"vetId":                  "vet-3",
		"vetName":                "Helen",
		"vetSurname":             "Leary",
		"appointmentDate":        "2026-09-14",
		"appointmentTime":        "10:30",
		"appointmentType":        "checkup",
		"appointmentDescription": "annual exam",
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
		} else {
			payload[k] = v
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal test payload: %v", err)
	}
	return string(raw)
}

func testPollerConfig() PollerConfig {
	return PollerConfig{
		QueueURL:          testQueueURL,
		MaxMessages:       10,
		WaitSeconds:       0,
		VisibilityTimeout: 30,
		IdleDelay:         time.Millisecond,
	}
}

func runPoller(t *testing.T, p *Poller, q *fakeQueue, stopAfterCalls int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.onReceive = func(queueURL string, call int) {
		if call >= stopAfterCalls {
			cancel()
		}
	}
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatal("poller did not stop in time")
	}
}

func TestPollerDeletesOnlyProcessedMessages(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: validBody(t, nil)},
		contracts.Message{MessageID: "m2", ReceiptHandle: "rh-2", Body: validBody(t, map[string]any{"vetName": nil})},
		contracts.Message{MessageID: "m3", ReceiptHandle: "rh-3", Body: validBody(t, map[string]any{"petId": "pet-43"})},
	)

	sink := &recordingSink{}
	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop(), WithReportSink(sink))
	runPoller(t, p, q, 2)

	deleted := q.deleted(testQueueURL)
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deletes, got %d: %v", len(deleted), deleted)
	}
	// batch messages are processed concurrently, order is not guaranteed
	got := map[string]bool{}
	for _, rh := range deleted {
		got[rh] = true
	}
	if !got["rh-1"] || !got["rh-3"] {
		t.Errorf("wrong receipt handles deleted: %v", deleted)
	}
	if got["rh-2"] {
		t.Errorf("invalid message rh-2 must not be deleted")
	}
	if len(q.deleted(testDLQURL)) != 0 {
		t.Errorf("poller must never touch the DLQ, deleted %v", q.deleted(testDLQURL))
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected 2 published records, got %d", len(sink.records))
	}
	ids := map[string]bool{}
	for _, rec := range sink.records {
		ids[rec.ID] = true
	}
	if !ids["pet-42"] || !ids["pet-43"] {
		t.Errorf("unexpected record ids: %+v", ids)
	}
}

func TestPollerRecordsValidationFailures(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: "{not json"},
		contracts.Message{MessageID: "m2", ReceiptHandle: "rh-2", Body: validBody(t, map[string]any{"ownerSurname": ""})},
	)

	audit := &recordingAudit{}
	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop(), WithFailureRecorder(audit))
	runPoller(t, p, q, 2)

	if len(q.deleted(testQueueURL)) != 0 {
		t.Fatalf("invalid messages must not be deleted, deleted %v", q.deleted(testQueueURL))
	}

	failures := audit.recorded()
	if len(failures) != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", len(failures))
	}
	kinds := map[string]bool{}
	for _, f := range failures {
		kinds[f.Kind] = true
	}
	if !kinds["malformed_payload"] || !kinds["missing_field"] {
		t.Errorf("unexpected failure kinds: %+v", kinds)
	}
	for _, f := range failures {
		if f.Source != "primary" {
			t.Errorf("expected source primary, got %q", f.Source)
		}
		if f.QueueURL != testQueueURL {
			t.Errorf("expected queue %q, got %q", testQueueURL, f.QueueURL)
		}
		if f.TraceID == "" {
			t.Error("expected a trace id")
		}
	}
}

func TestPollerLeavesMessageWhenPublishFails(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: validBody(t, nil)},
	)

	sink := &recordingSink{err: errors.New("downstream unavailable")}
	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop(), WithReportSink(sink))
	runPoller(t, p, q, 2)

	if len(q.deleted(testQueueURL)) != 0 {
		t.Errorf("message must stay queued when publish fails, deleted %v", q.deleted(testQueueURL))
	}
}

func TestPollerSurvivesReceiveErrors(t *testing.T) {
	q := newFakeQueue()
	q.enqueueError(testQueueURL, errors.New("connection reset"))
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: validBody(t, nil)},
	)

	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop())
	runPoller(t, p, q, 3)

	if got := q.deleted(testQueueURL); len(got) != 1 || got[0] != "rh-1" {
		t.Errorf("expected rh-1 deleted after recovery, got %v", got)
	}
}

func TestPollerFinishesInFlightDeleteOnShutdown(t *testing.T) {
	q := newFakeQueue()
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: validBody(t, nil)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shutdown lands after the record is published but before the delete.
	// The delete of an already-published message must still go through.
	sink := ReportSinkFunc(func(ctx context.Context, record report.ReportRecord) error {
		cancel()
		return nil
	})
	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop(), WithReportSink(sink))

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	if got := q.deleted(testQueueURL); len(got) != 1 || got[0] != "rh-1" {
		t.Errorf("expected rh-1 deleted despite shutdown, got %v", got)
	}
	if n := q.cancelledDeleteCount(); n != 0 {
		t.Errorf("delete ran with a cancelled context %d times", n)
	}
}

func TestPollerDoesNotCountSuccessWhenDeleteFails(t *testing.T) {
	q := newFakeQueue()
	q.deleteErr = errors.New("receipt handle is invalid")
	q.enqueueBatch(testQueueURL,
		contracts.Message{MessageID: "m1", ReceiptHandle: "rh-1", Body: validBody(t, nil)},
	)

	m := newRecordingMetrics()
	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop(), WithMetrics(m))
	runPoller(t, p, q, 2)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reportsMapped != 0 {
		t.Errorf("reports mapped counted %d times despite failed delete", m.reportsMapped)
	}
	if m.deleteFailures != 1 {
		t.Errorf("expected 1 delete failure, got %d", m.deleteFailures)
	}
}

func TestReceiptPrefix(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   string
	}{
		{"short handle kept whole", "rh-1", "rh-1"},
		{"exactly sixteen kept whole", "0123456789abcdef", "0123456789abcdef"},
		{"long handle truncated", "AQEBwJnKyrHigUMZj6rYigCgxlaS3SLy0a", "AQEBwJnKyrHigUMZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := receiptPrefix(tt.handle); got != tt.want {
				t.Errorf("receiptPrefix(%q) = %q, want %q", tt.handle, got, tt.want)
			}
		})
	}
}

func TestPollerIdlesOnEmptyReceive(t *testing.T) {
	q := newFakeQueue()

	p := NewPoller(q, report.NewMapper("test"), testPollerConfig(), zerolog.Nop())
	runPoller(t, p, q, 3)

	if len(q.deleted(testQueueURL)) != 0 {
		t.Errorf("no deletes expected on empty receives, got %v", q.deleted(testQueueURL))
	}
	if q.calls < 3 {
		t.Errorf("expected at least 3 receive calls, got %d", q.calls)
	}
}
