package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSagaMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetrics(reg)
	m.IncOutcome("created")
	m.IncOutcome("created")
	m.ObserveStep("validate", 120*time.Millisecond)
	m.AddRestores(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "order_saga_outcomes_total", "outcome", "created"); err != nil {
		t.Fatalf("fetch outcome: %v", err)
	} else if got != 2 {
		t.Fatalf("expected created=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "order_saga_step_duration_seconds", "step", "validate"); err != nil {
		t.Fatalf("fetch step: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected step duration sum > 0, got %f", got)
	}
	if mf := findMetricFamily(mfs, "order_saga_stock_restores_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 restores")
	}
}

func TestConsumerMetricsLabelsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConsumerMetrics(reg)
	m.Inc("inventory", "order_created", OutcomeDuplicate)
	m.Inc("inventory", "", OutcomeMalformed)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "event_consumer_deliveries_total", "outcome", OutcomeDuplicate); err != nil || got != 1 {
		t.Fatalf("expected one duplicate, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "event_consumer_deliveries_total", "event", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank event to be labelled unknown, got %f err=%v", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewSagaMetrics(nil).IncOutcome("created")
	NewConsumerMetrics(nil).Inc("a", "b", "c")
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
	f := NewFanoutMetrics(nil)
	f.ClientConnected()
	f.IncDropped()

	var nilSaga *SagaMetrics
	nilSaga.ObserveStep("persist", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
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

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
