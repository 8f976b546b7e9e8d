package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the prometheus side of operation tracking. The same
// observations also feed ServiceMetricsState for the RPC snapshot.
type Collectors struct {
	OperationsTotal  *prometheus.CounterVec
	OperationErrors  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Completed engine operations by name.",
		}, []string{"operation"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "sync",
			Name:      "operation_errors_total",
			Help:      "Failed engine operations by name.",
		}, []string{"operation"}),
		OperationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumen",
			Subsystem: "sync",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Recorded errors by category.",
		}, []string{"category"}),
	}
	if reg != nil {
		reg.MustRegister(c.OperationsTotal, c.OperationErrors, c.OperationLatency, c.ErrorsTotal)
	}
	return c
}

// OperationTracker produces the deferred closures the usecase services
// hang on their entry points.
type OperationTracker struct {
	State      *ServiceMetricsState
	Collectors *Collectors
}

// Track records one operation when the returned closure runs. The
// error pointer is read at defer time, after the operation assigned it.
func (t *OperationTracker) Track(operation string, errRef *error) func() {
	started := time.Now()
	return func() {
		if t.State != nil {
			t.State.RecordOp(operation, started)
			if errRef != nil && *errRef != nil {
				t.State.RecordOpError(operation)
			}
		}
		if t.Collectors != nil {
			t.Collectors.OperationsTotal.WithLabelValues(operation).Inc()
			t.Collectors.OperationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
			if errRef != nil && *errRef != nil {
				t.Collectors.OperationErrors.WithLabelValues(operation).Inc()
			}
		}
	}
}

// RecordError feeds both sinks for a categorized failure.
func (t *OperationTracker) RecordError(category string) {
	if t.State != nil {
		t.State.RecordError(category)
	}
	if t.Collectors != nil {
		t.Collectors.ErrorsTotal.WithLabelValues(category).Inc()
	}
}
