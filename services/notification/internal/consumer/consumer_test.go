package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	kafkautil "github.com/afikmenashe/patient-alerting/pkg/kafka"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/dispatcher"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	commitErr error
	closed    bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	select {
	case <-f.drained:
	default:
		close(f.drained)
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return f.commitErr
}

func (f *fakeReader) Close() error { f.closed = true; return nil }

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

type fakeHandler struct {
	mu      sync.Mutex
	handled []string
	errFor  map[string]error
}

func (f *fakeHandler) Handle(ctx context.Context, evt *events.AlertCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, evt.AlertID)
	return f.errFor[evt.AlertID]
}

type fakeRecorder struct {
	mu           sync.Mutex
	received     int
	processed    int
	skipped      int
	requeued     int
	deadLettered int
	errs         int
}

func (f *fakeRecorder) RecordReceived()                 { f.mu.Lock(); f.received++; f.mu.Unlock() }
func (f *fakeRecorder) RecordProcessed(_ time.Duration) { f.mu.Lock(); f.processed++; f.mu.Unlock() }
func (f *fakeRecorder) RecordPublished()                {}
func (f *fakeRecorder) RecordError()                    { f.mu.Lock(); f.errs++; f.mu.Unlock() }
func (f *fakeRecorder) RecordSkipped()                  { f.mu.Lock(); f.skipped++; f.mu.Unlock() }
func (f *fakeRecorder) RecordRequeued()                 { f.mu.Lock(); f.requeued++; f.mu.Unlock() }
func (f *fakeRecorder) RecordDeadLettered()             { f.mu.Lock(); f.deadLettered++; f.mu.Unlock() }
func (f *fakeRecorder) RecordFailed()                   {}
func (f *fakeRecorder) RecordSent()                     {}
func (f *fakeRecorder) IncrementCustom(_ string)        {}

func alertMessage(t *testing.T, offset int64, alertID string, headers ...kafka.Header) kafka.Message {
	t.Helper()
	evt := events.NewAlertCreated(alertID, "P1", "High Temperature", nil, events.SeverityCritical, time.Now(), time.Now())
	data, err := evt.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{
		Offset:  offset,
		Key:     []byte("P1"),
		Value:   data,
		Headers: append([]kafka.Header{{Key: kafkautil.HeaderRoutingKey, Value: []byte(events.RoutingKeyAlertCreated)}}, headers...),
	}
}

// runUntilDrained runs the consumer until the reader has no more messages.
func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
		cancel()
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	return nil
}

func TestRun_HandlesAndCommits(t *testing.T) {
	r := newFakeReader(alertMessage(t, 1, "a1"), alertMessage(t, 2, "a2"))
	h := &fakeHandler{}
	rec := &fakeRecorder{}
	c := New(r, &fakeWriter{}, h, Config{}, rec)

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.handled) != 2 || fmt.Sprint(r.committed) != "[1 2]" {
		t.Errorf("handled=%v committed=%v", h.handled, r.committed)
	}
	if rec.received != 2 || rec.processed != 2 {
		t.Errorf("received=%d processed=%d", rec.received, rec.processed)
	}
}

func TestRun_SkipsUnboundAndUndecodable(t *testing.T) {
	other := alertMessage(t, 1, "a1")
	other.Headers = []kafka.Header{{Key: kafkautil.HeaderRoutingKey, Value: []byte("rehabilitation.plancreated")}}
	missing := alertMessage(t, 2, "a2")
	missing.Headers = nil
	garbage := kafka.Message{Offset: 3, Value: []byte("{"), Headers: []kafka.Header{{Key: kafkautil.HeaderRoutingKey, Value: []byte("monitoring.alertcreated")}}}

	r := newFakeReader(other, missing, garbage)
	h := &fakeHandler{}
	rec := &fakeRecorder{}
	c := New(r, &fakeWriter{}, h, Config{}, rec)

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatal(err)
	}
	if len(h.handled) != 0 {
		t.Errorf("handled %v, want none", h.handled)
	}
	if fmt.Sprint(r.committed) != "[1 2 3]" || rec.skipped != 3 {
		t.Errorf("committed=%v skipped=%d", r.committed, rec.skipped)
	}
}

func TestRun_FailureRequeuesWithIncrementedAttempt(t *testing.T) {
	r := newFakeReader(alertMessage(t, 7, "a1", kafka.Header{Key: kafkautil.HeaderDeliveryAttempt, Value: []byte("2")}))
	w := &fakeWriter{}
	h := &fakeHandler{errFor: map[string]error{"a1": errors.New("db down")}}
	rec := &fakeRecorder{}
	c := New(r, w, h, Config{RequeueDelay: 0}, rec)

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatal(err)
	}
	if len(w.written) != 1 {
		t.Fatalf("written %d messages, want 1", len(w.written))
	}
	if got := kafkautil.DeliveryAttempt(w.written[0]); got != 3 {
		t.Errorf("requeued delivery attempt = %d, want 3", got)
	}
	if key, _ := kafkautil.HeaderValue(w.written[0], kafkautil.HeaderRoutingKey); key != events.RoutingKeyAlertCreated {
		t.Errorf("routing key lost on requeue: %q", key)
	}
	if string(w.written[0].Key) != "P1" {
		t.Errorf("message key = %q", w.written[0].Key)
	}
	if fmt.Sprint(r.committed) != "[7]" || rec.requeued != 1 {
		t.Errorf("committed=%v requeued=%d", r.committed, rec.requeued)
	}
}

func TestRun_RequeueWriteFailureStopsWithoutCommit(t *testing.T) {
	r := newFakeReader(alertMessage(t, 1, "a1"), alertMessage(t, 2, "a2"))
	w := &fakeWriter{err: errors.New("broker unavailable")}
	h := &fakeHandler{errFor: map[string]error{"a1": errors.New("db down")}}
	c := New(r, w, h, Config{}, nil)

	err := runUntilDrained(t, c, r)
	if err == nil {
		t.Fatal("Run() error = nil, want requeue failure")
	}
	if len(r.committed) != 0 {
		t.Errorf("committed %v, want nothing", r.committed)
	}
	if len(h.handled) != 1 {
		t.Errorf("handled %v, want only the first event", h.handled)
	}
}

func TestRun_InvalidAndExhaustedEventsAreDropped(t *testing.T) {
	r := newFakeReader(
		alertMessage(t, 1, "bad"),
		alertMessage(t, 2, "tired", kafka.Header{Key: kafkautil.HeaderDeliveryAttempt, Value: []byte("3")}),
	)
	w := &fakeWriter{}
	h := &fakeHandler{errFor: map[string]error{
		"bad":   fmt.Errorf("%w: patient id is required", dispatcher.ErrInvalidEvent),
		"tired": errors.New("db down"),
	}}
	c := New(r, w, h, Config{MaxDeliveryAttempts: 3}, nil)

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatal(err)
	}
	if len(w.written) != 0 {
		t.Errorf("requeued %d messages, want 0", len(w.written))
	}
	if fmt.Sprint(r.committed) != "[1 2]" {
		t.Errorf("committed = %v", r.committed)
	}
}

func TestRun_ExhaustedEventIsDeadLettered(t *testing.T) {
	r := newFakeReader(alertMessage(t, 4, "tired", kafka.Header{Key: kafkautil.HeaderDeliveryAttempt, Value: []byte("3")}))
	w, dlq := &fakeWriter{}, &fakeWriter{}
	h := &fakeHandler{errFor: map[string]error{"tired": errors.New("db down")}}
	rec := &fakeRecorder{}
	c := New(r, w, h, Config{MaxDeliveryAttempts: 3}, rec, WithDeadLetter(dlq))

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatal(err)
	}
	if len(w.written) != 0 {
		t.Errorf("requeued %d messages, want 0", len(w.written))
	}
	if len(dlq.written) != 1 {
		t.Fatalf("dead-lettered %d messages, want 1", len(dlq.written))
	}
	parked := dlq.written[0]
	if reason, _ := kafkautil.HeaderValue(parked, kafkautil.HeaderDeadLetterError); reason != "db down" {
		t.Errorf("dead-letter error header = %q", reason)
	}
	if got := kafkautil.DeliveryAttempt(parked); got != 3 {
		t.Errorf("delivery attempt = %d, want 3", got)
	}
	if string(parked.Key) != "P1" {
		t.Errorf("message key = %q", parked.Key)
	}
	if fmt.Sprint(r.committed) != "[4]" || rec.deadLettered != 1 {
		t.Errorf("committed=%v deadLettered=%d", r.committed, rec.deadLettered)
	}
}

func TestRun_DeadLetterWriteFailureStopsWithoutCommit(t *testing.T) {
	r := newFakeReader(alertMessage(t, 4, "tired", kafka.Header{Key: kafkautil.HeaderDeliveryAttempt, Value: []byte("3")}))
	dlq := &fakeWriter{err: errors.New("broker unavailable")}
	h := &fakeHandler{errFor: map[string]error{"tired": errors.New("db down")}}
	c := New(r, &fakeWriter{}, h, Config{MaxDeliveryAttempts: 3}, nil, WithDeadLetter(dlq))

	if err := runUntilDrained(t, c, r); err == nil {
		t.Fatal("Run() error = nil, want dead-letter failure")
	}
	if len(r.committed) != 0 {
		t.Errorf("committed %v, want nothing", r.committed)
	}
}

func TestRun_ShutdownCutsRequeueDelayShort(t *testing.T) {
	r := newFakeReader(alertMessage(t, 1, "a1"))
	w := &fakeWriter{}
	h := &fakeHandler{errFor: map[string]error{"a1": errors.New("db down")}}
	c := New(r, w, h, Config{RequeueDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		h.mu.Lock()
		n := len(h.handled)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("consumer stayed in the requeue delay after cancellation")
	}
	if len(w.written) != 1 {
		t.Errorf("written %d messages, want the event requeued before stopping", len(w.written))
	}
	if fmt.Sprint(r.committed) != "[1]" {
		t.Errorf("committed = %v, want [1]", r.committed)
	}
}

func TestRun_FetchErrorsAreRetried(t *testing.T) {
	r := newFakeReader(alertMessage(t, 1, "a1"))
	r.fetchErrs = []error{errors.New("coordinator not available")}
	h := &fakeHandler{}
	c := New(r, &fakeWriter{}, h, Config{}, nil)

	if err := runUntilDrained(t, c, r); err != nil {
		t.Fatal(err)
	}
	if len(h.handled) != 1 {
		t.Errorf("handled %v, want [a1]", h.handled)
	}
}

func TestMatchBinding(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"monitoring.alertcreated", "monitoring.alertcreated", true},
		{"monitoring.alertcreated", "Monitoring.AlertCreated", true},
		{"monitoring.*", "monitoring.alertcreated", true},
		{"monitoring.*", "monitoring.alert.created", false},
		{"#", "anything.at.all", true},
		{"monitoring.#", "monitoring", true},
		{"*.alertcreated", "monitoring.alertcreated", true},
		{"monitoring.alertcreated", "monitoring.alertresolved", false},
		{"monitoring.alertcreated", "", false},
	}
	for _, tt := range tests {
		if got := MatchBinding(tt.pattern, tt.key); got != tt.want {
			t.Errorf("MatchBinding(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestNewKafka_Validation(t *testing.T) {
	if _, err := NewKafka("", "topic", "group", &fakeHandler{}, Config{}, nil); err == nil || err.Error() != "brokers cannot be empty" {
		t.Errorf("NewKafka() error = %v", err)
	}
	c, err := NewKafka("localhost:9092", events.DefaultTopic, DefaultGroupID, &fakeHandler{}, Config{}, nil)
	if err != nil {
		t.Fatalf("NewKafka() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClose_DeadLetterWriter(t *testing.T) {
	dlq := &fakeWriter{}
	c := New(newFakeReader(), &fakeWriter{}, &fakeHandler{}, Config{}, nil, WithDeadLetter(dlq))
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !dlq.closed {
		t.Error("dead-letter writer should be closed")
	}
}

func TestClose(t *testing.T) {
	r, w := newFakeReader(), &fakeWriter{}
	if err := New(r, w, &fakeHandler{}, Config{}, nil).Close(); err != nil {
		t.Fatal(err)
	}
	if !r.closed || !w.closed {
		t.Error("reader and writer should both be closed")
	}
}
