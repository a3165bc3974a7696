// Package metrics provides the metrics recording interface of the delivery
// pipeline. It uses the null object pattern to avoid nil checks throughout
// the codebase.
package metrics

import "time"

// Recorder defines the interface for recording pipeline metrics.
// Implementations can record to various backends (Redis, Prometheus, etc.)
type Recorder interface {
	// RecordReceived increments the count of received alert events.
	RecordReceived()

	// RecordProcessed records a fully processed event with its latency.
	RecordProcessed(latency time.Duration)

	// RecordError increments the error counter.
	RecordError()

	// RecordStopped counts an event that produced no deliveries.
	RecordStopped(reason string)

	// RecordSent counts a successful delivery on a channel.
	RecordSent(channel string)

	// RecordFailed counts a failed delivery on a channel.
	RecordFailed(channel string)

	// RecordSuppressed counts a record suppressed by policy.
	RecordSuppressed(reason string)

	// RecordRetry counts a delivery retry on a channel.
	RecordRetry(channel string)
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
func (n *NoOp) RecordError()                    {}
func (n *NoOp) RecordStopped(_ string)          {}
func (n *NoOp) RecordSent(_ string)             {}
func (n *NoOp) RecordFailed(_ string)           {}
func (n *NoOp) RecordSuppressed(_ string)       {}
func (n *NoOp) RecordRetry(_ string)            {}

// Ensure NoOp implements Recorder
var _ Recorder = (*NoOp)(nil)
