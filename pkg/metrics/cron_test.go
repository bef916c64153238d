package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsSplitsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "commission-approval"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		job, result string
		want        float64
	}{
		{job, "success", 2},
		{job, "failure", 1},
		{"unknown", "failure", 1},
	}
	for _, tc := range cases {
		got, err := counterValue(mfs, "cron_job_runs_total", map[string]string{"job": tc.job, "result": tc.result})
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.job, tc.result, err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.job, tc.result, tc.want, got)
		}
	}

	mf := findMetricFamily(mfs, "cron_job_duration_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one duration series")
	}
	if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 0.25 {
		t.Fatalf("expected duration sum 0.25, got %f", sum)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	metrics := NewCronJobMetrics(nil)
	metrics.IncSuccess("x")
	metrics.ObserveDuration("x", time.Second)

	var missing *CronJobMetrics
	missing.IncFailure("x")
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
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

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	return counterValue(mfs, name, map[string]string{label: value})
}

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.ObserveBatch(3)
	m.IncPublish("order_assigned", OutboxPublished)
	m.IncPublish("order_assigned", OutboxPublished)
	m.IncPublish("order_assigned", OutboxDeadLettered)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := counterValue(mfs, "outbox_publish_total", map[string]string{"event_type": "order_assigned", "result": OutboxPublished})
	if err != nil || got != 2 {
		t.Fatalf("expected 2 published, got %v (%v)", got, err)
	}
	if mf := findMetricFamily(mfs, "outbox_batch_rows"); mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one batch observation")
	}
}
