package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func newCounter(name, help string, labels prometheus.Labels) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "argus",
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

// EnablePrometheus mirrors every counter of the collector into Prometheus
// collectors registered on reg. It must be called before the collector is used.
func (c *Collector) EnablePrometheus(reg prometheus.Registerer) error {
	labels := prometheus.Labels{"service": c.serviceName}

	received := newCounter("messages_received_total", "Total number of messages received", labels)
	processed := newCounter("messages_processed_total", "Total number of messages processed", labels)
	published := newCounter("messages_published_total", "Total number of messages published", labels)
	errs := newCounter("processing_errors_total", "Total number of processing errors", labels)
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "argus",
		Name:        "processing_duration_seconds",
		Help:        "Duration of message processing",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	})
	custom := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "argus",
		Name:        "events_total",
		Help:        "Service specific event counters",
		ConstLabels: labels,
	}, []string{"name"})

	for _, col := range []prometheus.Collector{received, processed, published, errs, latency, custom} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}

	c.received.prom = received
	c.processed.prom = processed
	c.published.prom = published
	c.errors.prom = errs
	c.latencyProm = latency

	c.customMu.Lock()
	c.customVec = custom
	for name, ctr := range c.custom {
		ctr.prom = custom.WithLabelValues(name)
	}
	c.customMu.Unlock()
	return nil
}
