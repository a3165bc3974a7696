// Package api provides the HTTP API of the notifier: preferences, rules,
// delivery history, digests and service metrics.
package api

import (
	"context"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
	"github.com/Hibaxbelghith/argus-sub000/internal/preferences"
	"github.com/Hibaxbelghith/argus-sub000/internal/store"
	"github.com/Hibaxbelghith/argus-sub000/pkg/metrics"
)

// Repository is the persistence the API reads and writes.
type Repository interface {
	preferences.Store
	store.Rules
	GetDelivery(ctx context.Context, deliveryID string) (*delivery.Record, error)
	ListDeliveries(ctx context.Context, filter store.DeliveryFilter) ([]*delivery.Record, error)
	MarkRead(ctx context.Context, deliveryID string, at time.Time) (*delivery.Record, error)
	store.Logs
}

// ServiceMetricsReader reads the metrics services report to Redis.
type ServiceMetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	repo          Repository
	metricsReader ServiceMetricsReader
	now           func() time.Time
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetricsReader enables GET /api/v1/services/metrics.
func WithMetricsReader(r ServiceMetricsReader) Option {
	return func(h *Handlers) {
		if r != nil {
			h.metricsReader = r
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandlers creates a new handlers instance.
func NewHandlers(repo Repository, opts ...Option) *Handlers {
	h := &Handlers{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
