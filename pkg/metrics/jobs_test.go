package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	job := "unprocessed-webhook-audit"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.SetUnsettled(4)
	m.SetUnprocessed(7)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "job_success_total", "job", job)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "job_failure_total", "job", job)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.Greater(t, sum, float64(0))

	gauge := findMetricFamily(mfs, "unsettled_payments")
	require.NotNil(t, gauge)
	assert.Equal(t, float64(4), gauge.GetMetric()[0].GetGauge().GetValue())

	unprocessed := findMetricFamily(mfs, "unprocessed_webhook_logs")
	require.NotNil(t, unprocessed)
	assert.Equal(t, float64(7), unprocessed.GetMetric()[0].GetGauge().GetValue())
}

func TestNilJobMetricsIsSafe(t *testing.T) {
	var m *JobMetrics
	m.ObserveDuration("x", time.Second)
	m.IncSuccess("x")
	m.IncFailure("x")
	m.SetUnsettled(1)
	m.SetUnprocessed(1)
}
