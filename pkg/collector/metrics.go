package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_collector_runs_total",
		Help: "Total number of completed collections",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appliance_collector_run_duration_seconds",
		Help:    "Collection duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	propertyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_collector_property_failures_total",
		Help: "Total number of failed property tasks",
	})

	cancelledTasksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appliance_collector_cancelled_tasks_total",
		Help: "Total number of property tasks never started because the collection was stopped",
	})
)
