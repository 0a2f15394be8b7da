// Package metrics provides metrics recording interfaces for the notification service.
// It uses the null object pattern to avoid nil checks throughout the codebase.
package metrics

import "time"

// Custom counter names written by the collector adapter.
const (
	CounterSent         = "notifications_sent"
	CounterFailed       = "notifications_failed"
	CounterSkipped      = "events_skipped"
	CounterRequeued     = "events_requeued"
	CounterDeadLettered = "events_dead_lettered"
)

// Recorder defines the interface for recording notification metrics.
type Recorder interface {
	// RecordReceived increments the count of consumed bus messages.
	RecordReceived()

	// RecordProcessed records a successfully handled message or delivery with its latency.
	RecordProcessed(latency time.Duration)

	// RecordPublished increments the count of messages written back to the bus.
	RecordPublished()

	// RecordError increments the error counter.
	RecordError()

	// RecordSkipped increments the count of messages ignored by routing key or decode failure.
	RecordSkipped()

	// RecordRequeued increments the count of messages handed back for redelivery.
	RecordRequeued()

	// RecordDeadLettered increments the count of exhausted messages parked on the dead-letter topic.
	RecordDeadLettered()

	// RecordFailed increments the count of failed delivery attempts.
	RecordFailed()

	// RecordSent increments the count of delivered notifications.
	RecordSent()

	// IncrementCustom increments a named domain counter.
	IncrementCustom(name string)
}

// NoOp is a no-op implementation of Recorder that discards all metrics.
// Use this when metrics collection is not configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}
func (n *NoOp) RecordPublished()                {}
func (n *NoOp) RecordError()                    {}
func (n *NoOp) RecordSkipped()                  {}
func (n *NoOp) RecordRequeued()                 {}
func (n *NoOp) RecordDeadLettered()             {}
func (n *NoOp) RecordFailed()                   {}
func (n *NoOp) RecordSent()                     {}
func (n *NoOp) IncrementCustom(_ string)        {}

// Ensure NoOp implements Recorder
var _ Recorder = (*NoOp)(nil)
