package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LifecycleMetrics records label lifecycle activity.
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	collisions  prometheus.Counter
	generated   prometheus.Counter
}

// NewLifecycleMetrics registers the lifecycle metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "label_transitions_total",
		Help: "Label lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "label_operation_duration_seconds",
		Help:    "Duration of label lifecycle operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "label_code_collisions_total",
		Help: "Generated label codes rejected because they already existed.",
	})
	generated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "label_labels_generated_total",
		Help: "Labels created by batch generation or reprint.",
	})
	reg.MustRegister(transitions, duration, collisions, generated)
	return &LifecycleMetrics{
		transitions: transitions,
		duration:    duration,
		collisions:  collisions,
		generated:   generated,
	}
}

// ObserveOperation records the outcome and latency of one operation.
func (m *LifecycleMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.transitions == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.transitions.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncCodeCollision counts one rejected code candidate.
func (m *LifecycleMetrics) IncCodeCollision() {
	if m == nil || m.collisions == nil {
		return
	}
	m.collisions.Inc()
}

// AddLabelsGenerated counts newly created labels.
func (m *LifecycleMetrics) AddLabelsGenerated(n int) {
	if m == nil || m.generated == nil || n <= 0 {
		return
	}
	m.generated.Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
