package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLifecycleMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLifecycleMetrics(reg)
	metrics.ObserveOperation("retire", OutcomeSuccess, 40*time.Millisecond)
	metrics.ObserveOperation("retire", OutcomeRejected, 10*time.Millisecond)
	metrics.ObserveOperation("retire", OutcomeRejected, 10*time.Millisecond)
	metrics.IncCodeCollision()
	metrics.AddLabelsGenerated(12)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "label_transitions_total", map[string]string{"operation": "retire", "outcome": OutcomeRejected}); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected rejected=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "label_operation_duration_seconds", "operation", "retire"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "label_code_collisions_total", nil); err != nil {
		t.Fatalf("fetch collisions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected collisions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "label_labels_generated_total", nil); err != nil {
		t.Fatalf("fetch generated: %v", err)
	} else if got != 12 {
		t.Fatalf("expected generated=12, got %f", got)
	}
}

func TestLifecycleMetricsNilSafe(t *testing.T) {
	var metrics *LifecycleMetrics
	metrics.ObserveOperation("scan", OutcomeSuccess, time.Millisecond)
	metrics.IncCodeCollision()
	metrics.AddLabelsGenerated(3)

	unregistered := NewLifecycleMetrics(nil)
	unregistered.ObserveOperation("scan", OutcomeSuccess, time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), map[string]string{label: value}) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
