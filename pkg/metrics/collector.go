// Package metrics provides the metrics collection and reporting shared by the
// argus binaries. Counters are written to Redis for the services dashboard and
// mirrored into Prometheus for scraping.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// Service health reported in ServiceMetrics.Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Service names reported by the argus binaries.
const (
	ServiceNotifier      = "notifier"
	ServiceNotifierAPI   = "notifier-api"
	ServiceAlertProducer = "alert-producer"
)

// ServiceNames is the list of known services for the dashboard.
var ServiceNames = []string{
	ServiceAlertProducer,
	ServiceNotifier,
	ServiceNotifierAPI,
}

// ServiceMetrics is the snapshot a service publishes under MetricsKeyPrefix.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"`

	// Counters (monotonically increasing since start)
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	MessagesPublished uint64 `json:"messages_published"`
	ProcessingErrors  uint64 `json:"processing_errors"`

	MessagesPerSecond      float64 `json:"messages_per_second"`
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	// Service-specific counters such as sent_email or stop_quiet_hours.
	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// counter is a monotonic count with an optional Prometheus mirror.
type counter struct {
	n    atomic.Uint64
	prom prometheus.Counter
}

func (c *counter) add(v uint64) {
	c.n.Add(v)
	if c.prom != nil {
		c.prom.Add(float64(v))
	}
}

func (c *counter) load() uint64 {
	return c.n.Load()
}

// window is the counter state at the last report, used for the rate and the
// health status of the next one.
type window struct {
	at        time.Time
	processed uint64
	errors    uint64
}

// Collector collects and reports metrics for a service.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	received  counter
	processed counter
	published counter
	errors    counter

	latencyNs    atomic.Uint64
	latencyCount atomic.Uint64
	latencyProm  prometheus.Observer

	windowMu sync.Mutex
	last     window

	customMu  sync.RWMutex
	custom    map[string]*counter
	customVec *prometheus.CounterVec

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector for a service.
// redisClient may be nil, in which case nothing is written to Redis.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		last:           window{at: now},
		custom:         make(map[string]*counter),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis. A final report is
// written when ctx ends or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.report(context.WithoutCancel(ctx))
				return
			case <-c.stopCh:
				c.report(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				c.report(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting and waits for the final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived counts a received message.
func (c *Collector) RecordReceived() {
	c.received.add(1)
}

// RecordProcessed counts a processed message and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.processed.add(1)
	c.latencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
	if c.latencyProm != nil {
		c.latencyProm.Observe(latency.Seconds())
	}
}

// RecordPublished counts a published message.
func (c *Collector) RecordPublished() {
	c.published.add(1)
}

// RecordError counts a processing error.
func (c *Collector) RecordError() {
	c.errors.add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter, creating it on first use.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	ctr, ok := c.custom[name]
	c.customMu.RUnlock()

	if !ok {
		c.customMu.Lock()
		if ctr, ok = c.custom[name]; !ok {
			ctr = &counter{}
			if c.customVec != nil {
				ctr.prom = c.customVec.WithLabelValues(name)
			}
			c.custom[name] = ctr
		}
		c.customMu.Unlock()
	}
	ctr.add(value)
}

// GetSnapshot returns current metrics without writing to Redis. The rate and
// status cover the period since the last report: a service that saw errors
// and processed nothing in that period is unhealthy.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.processed.load()
	errs := c.errors.load()

	c.windowMu.Lock()
	last := c.last
	c.windowMu.Unlock()

	var rate float64
	if elapsed := now.Sub(last.at).Seconds(); elapsed > 0 {
		rate = float64(processed-last.processed) / elapsed
	}
	status := StatusHealthy
	if errs > last.errors && processed == last.processed {
		status = StatusUnhealthy
	}

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.latencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.custom))
	for name, ctr := range c.custom {
		custom[name] = ctr.load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 status,
		MessagesReceived:       c.received.load(),
		MessagesProcessed:      processed,
		MessagesPublished:      c.published.load(),
		ProcessingErrors:       errs,
		MessagesPerSecond:      rate,
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         custom,
	}
}

// report writes a snapshot to Redis and starts a new window.
func (c *Collector) report(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snap := c.GetSnapshot()

	c.windowMu.Lock()
	c.last = window{at: snap.LastUpdated, processed: snap.MessagesProcessed, errors: snap.ProcessingErrors}
	c.windowMu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key, "status", snap.Status)
}
