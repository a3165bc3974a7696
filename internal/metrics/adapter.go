package metrics

import (
	"time"

	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
)

// CollectorAdapter adapts pkg/metrics.Collector to the Recorder interface.
type CollectorAdapter struct {
	collector *metrics.Collector
}

// NewCollectorAdapter wraps a metrics.Collector to implement Recorder.
func NewCollectorAdapter(collector *metrics.Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordProcessed(latency time.Duration) {
	a.collector.RecordProcessed(latency)
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

func (a *CollectorAdapter) RecordStopped(reason string) {
	a.collector.IncrementCustom("events_stopped_" + reason)
}

func (a *CollectorAdapter) RecordSent(channel string) {
	a.collector.RecordPublished()
	a.collector.IncrementCustom("deliveries_sent_" + channel)
}

func (a *CollectorAdapter) RecordFailed(channel string) {
	a.collector.IncrementCustom("deliveries_failed_" + channel)
}

func (a *CollectorAdapter) RecordSuppressed(reason string) {
	a.collector.IncrementCustom("deliveries_suppressed_" + reason)
}

func (a *CollectorAdapter) RecordRetry(channel string) {
	a.collector.IncrementCustom("delivery_retries_" + channel)
}

// Ensure CollectorAdapter implements Recorder
var _ Recorder = (*CollectorAdapter)(nil)
