// Package metrics exposes Prometheus collectors for command dispatch.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	hybridResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridexec",
			Subsystem: "hybrid",
			Name:      "results_total",
			Help:      "Final command results by executor and status.",
		},
		[]string{"executor", "status"},
	)
	hybridFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridexec",
			Subsystem: "hybrid",
			Name:      "fallbacks_total",
			Help:      "Attempts discarded in favour of the other executor.",
		},
		[]string{"from", "status"},
	)
	lowPassAccessors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hybridexec",
			Subsystem: "lowpass",
			Name:      "accessors",
			Help:      "Races admitted or waiting on the low-pass filter.",
		},
	)
	workerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridexec",
			Subsystem: "worker",
			Name:      "executions_total",
			Help:      "Commands executed on behalf of remote clients.",
		},
		[]string{"status"},
	)
	workerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hybridexec",
			Subsystem: "worker",
			Name:      "execution_duration_seconds",
			Help:      "Worker command duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register adds the collectors to the default registry. It is idempotent.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(hybridResults, hybridFallbacks, lowPassAccessors, workerExecutions, workerDuration)
	})
}

func RecordHybridResult(executor, status string) {
	Register()
	hybridResults.WithLabelValues(executor, status).Inc()
}

func RecordFallback(from, status string) {
	Register()
	hybridFallbacks.WithLabelValues(from, status).Inc()
}

func SetLowPassAccessors(n int) {
	Register()
	lowPassAccessors.Set(float64(n))
}

func RecordWorkerExecution(status string, seconds float64) {
	Register()
	workerExecutions.WithLabelValues(status).Inc()
	workerDuration.Observe(seconds)
}
