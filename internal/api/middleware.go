package api

import (
	"fmt"
	"net/http"
	"time"
)

// RequestRecorder counts HTTP requests. *metrics.Collector implements it.
type RequestRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// corsMiddleware applies CORS headers to all requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// routeMetrics names the custom counter of each served route. Paths mapped
// to "" are not measured.
var routeMetrics = map[string]string{
	"/api/v1/preferences":      "api_preferences",
	"/api/v1/rules":            "api_rules",
	"/api/v1/rules/update":     "api_rules",
	"/api/v1/rules/toggle":     "api_rules",
	"/api/v1/rules/delete":     "api_rules",
	"/api/v1/deliveries":       "api_deliveries",
	"/api/v1/deliveries/logs":  "api_delivery_logs",
	"/api/v1/deliveries/read":  "api_delivery_read",
	"/api/v1/digest":           "api_digest",
	"/api/v1/services/metrics": "",
	"/metrics":                 "",
	"/health":                  "",
}

// routeMetric returns the counter name of path and whether it is measured.
func routeMetric(path string) (string, bool) {
	name, ok := routeMetrics[path]
	if !ok {
		return "api_unmatched", true
	}
	return name, name != ""
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests per route and status class. Only server
// errors count as errors; a 4xx is a processed request with a bad input.
func metricsMiddleware(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, measured := routeMetric(r.URL.Path)
			if !measured {
				next.ServeHTTP(w, r)
				return
			}

			recorder.RecordReceived()
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			if sr.status >= http.StatusInternalServerError {
				recorder.RecordError()
			} else {
				recorder.RecordProcessed(time.Since(start))
			}
			recorder.IncrementCustom(route)
			recorder.IncrementCustom(fmt.Sprintf("http_%dxx", sr.status/100))
		})
	}
}
