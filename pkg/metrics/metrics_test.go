package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(ServiceNotifier, nil)

	c.RecordReceived()
	c.RecordReceived()
	c.RecordProcessed(10 * time.Millisecond)
	c.RecordProcessed(30 * time.Millisecond)
	c.RecordPublished()
	c.RecordError()
	c.IncrementCustom("notifications_sent")
	c.AddCustom("notifications_sent", 2)
	c.IncrementCustom("stop_quiet_hours")

	snap := c.GetSnapshot()
	if snap.ServiceName != ServiceNotifier {
		t.Errorf("ServiceName = %q, want %q", snap.ServiceName, ServiceNotifier)
	}
	if snap.MessagesReceived != 2 {
		t.Errorf("MessagesReceived = %d, want 2", snap.MessagesReceived)
	}
	if snap.MessagesProcessed != 2 {
		t.Errorf("MessagesProcessed = %d, want 2", snap.MessagesProcessed)
	}
	if snap.MessagesPublished != 1 || snap.ProcessingErrors != 1 {
		t.Errorf("published/errors = %d/%d, want 1/1", snap.MessagesPublished, snap.ProcessingErrors)
	}
	if want := float64(20 * time.Millisecond); snap.AvgProcessingLatencyNs != want {
		t.Errorf("AvgProcessingLatencyNs = %v, want %v", snap.AvgProcessingLatencyNs, want)
	}
	if got := snap.CustomCounters["notifications_sent"]; got != 3 {
		t.Errorf("notifications_sent = %d, want 3", got)
	}
	if got := snap.CustomCounters["stop_quiet_hours"]; got != 1 {
		t.Errorf("stop_quiet_hours = %d, want 1", got)
	}
}

func TestCollector_StartStopWithoutRedis(t *testing.T) {
	c := NewCollector(ServiceNotifier, nil)
	c.SetReportInterval(time.Millisecond)
	c.Start(t.Context())
	time.Sleep(5 * time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestCollector_PrometheusMirror(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(ServiceNotifier, nil)
	if err := c.EnablePrometheus(reg); err != nil {
		t.Fatalf("EnablePrometheus() error = %v", err)
	}

	c.IncrementCustom("notifications_failed")
	c.RecordReceived()
	c.RecordProcessed(time.Millisecond)
	c.RecordPublished()
	c.RecordError()
	c.RecordError()
	c.IncrementCustom("notifications_failed")

	if got := testutil.ToFloat64(c.received.prom); got != 1 {
		t.Errorf("received = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.errors.prom); got != 2 {
		t.Errorf("errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.customVec.WithLabelValues("notifications_failed")); got != 2 {
		t.Errorf("custom = %v, want 2", got)
	}

	// a second collector for the same service cannot register the same series
	dup := NewCollector(ServiceNotifier, nil)
	if err := dup.EnablePrometheus(reg); err == nil {
		t.Error("EnablePrometheus() on duplicate service should fail")
	}
}

func TestCollector_Status(t *testing.T) {
	c := NewCollector(ServiceNotifier, nil)
	if got := c.GetSnapshot().Status; got != StatusHealthy {
		t.Errorf("idle Status = %q, want %q", got, StatusHealthy)
	}

	c.RecordError()
	if got := c.GetSnapshot().Status; got != StatusUnhealthy {
		t.Errorf("errors only Status = %q, want %q", got, StatusUnhealthy)
	}

	c.RecordProcessed(time.Millisecond)
	if got := c.GetSnapshot().Status; got != StatusHealthy {
		t.Errorf("errors and progress Status = %q, want %q", got, StatusHealthy)
	}
}

func TestDecodeServiceMetrics(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		updated    time.Time
		wantStatus string
	}{
		{name: "fresh", updated: now.Add(-30 * time.Second), wantStatus: StatusHealthy},
		{name: "stale", updated: now.Add(-MetricsTTL - time.Second), wantStatus: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := json.Marshal(ServiceMetrics{ServiceName: ServiceNotifier, Status: StatusHealthy, LastUpdated: tt.updated})
			got, err := decodeServiceMetrics(data, now)
			if err != nil {
				t.Fatalf("decodeServiceMetrics() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}

	if _, err := decodeServiceMetrics([]byte("{"), now); err == nil {
		t.Error("decodeServiceMetrics() with bad json should fail")
	}
}
