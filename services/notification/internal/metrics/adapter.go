package metrics

import (
	"github.com/afikmenashe/patient-alerting/pkg/metrics"
)

// CollectorAdapter records notification metrics on a shared Collector. Bus
// traffic, latency and errors use the Collector's own counters; delivery and
// redelivery outcomes become custom counters so the metrics API can report
// them per service.
type CollectorAdapter struct {
	*metrics.Collector
}

// NewCollectorAdapter wraps collector as a Recorder.
func NewCollectorAdapter(collector *metrics.Collector) *CollectorAdapter {
	return &CollectorAdapter{Collector: collector}
}

func (a *CollectorAdapter) RecordSkipped()      { a.IncrementCustom(CounterSkipped) }
func (a *CollectorAdapter) RecordRequeued()     { a.IncrementCustom(CounterRequeued) }
func (a *CollectorAdapter) RecordDeadLettered() { a.IncrementCustom(CounterDeadLettered) }
func (a *CollectorAdapter) RecordFailed()       { a.IncrementCustom(CounterFailed) }
func (a *CollectorAdapter) RecordSent()         { a.IncrementCustom(CounterSent) }

var _ Recorder = (*CollectorAdapter)(nil)
