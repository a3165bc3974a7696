package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *Handlers
	recorder RequestRecorder
	gatherer prometheus.Gatherer
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRequestRecorder counts every API request.
func WithRequestRecorder(rec RequestRecorder) RouterOption {
	return func(r *Router) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithGatherer serves g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(r *Router) {
		if g != nil {
			r.gatherer = g
		}
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handlers, opts ...RouterOption) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	// Preference endpoints
	r.mux.HandleFunc("/api/v1/preferences", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			r.handlers.GetPreferences(w, req)
		case http.MethodPut:
			r.handlers.UpdatePreferences(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Rule endpoints
	r.mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateRule(w, req)
		case http.MethodGet:
			if req.URL.Query().Get("rule_id") != "" {
				r.handlers.GetRule(w, req)
			} else {
				r.handlers.ListRules(w, req)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/v1/rules/update", r.handlers.UpdateRule)
	r.mux.HandleFunc("/api/v1/rules/toggle", r.handlers.ToggleRule)
	r.mux.HandleFunc("/api/v1/rules/delete", r.handlers.DeleteRule)

	// Delivery endpoints
	r.mux.HandleFunc("/api/v1/deliveries", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("delivery_id") != "" {
			r.handlers.GetDelivery(w, req)
		} else {
			r.handlers.ListDeliveries(w, req)
		}
	})
	r.mux.HandleFunc("/api/v1/deliveries/logs", r.handlers.ListLogs)
	r.mux.HandleFunc("/api/v1/deliveries/read", r.handlers.MarkRead)
	r.mux.HandleFunc("/api/v1/digest", r.handlers.GetDigest)

	// Service metrics endpoint (from Redis)
	r.mux.HandleFunc("/api/v1/services/metrics", r.handlers.GetServiceMetrics)

	if r.gatherer != nil {
		r.mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	// Health check endpoint
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Handler returns the HTTP handler with CORS and metrics middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.recorder)(r.mux))
}

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *Handlers, opts ...RouterOption) *http.Server {
	router := NewRouter(h, opts...)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
