package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for device exchanges.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_requests_total",
		Help: "Total device requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "appliance_request_duration_seconds",
		Help:    "Device request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_errors_total",
		Help: "Total device request errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	endpointLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appliance_endpoint_loads_total",
		Help: "Total LoadEndpoint calls by endpoint and result",
	}, []string{"endpoint", "result"})
)
