package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records maintenance job runs and the backlog they observe.
type JobMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	unsettled   prometheus.Gauge
	unprocessed prometheus.Gauge
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success_total",
		Help: "Successful maintenance job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure_total",
		Help: "Failed maintenance job executions.",
	}, []string{"job"})
	unsettled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "unsettled_payments",
		Help: "Pending or processing payments older than the stale threshold at the last audit.",
	})
	unprocessed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "unprocessed_webhook_logs",
		Help: "Webhook deliveries left unprocessed past the grace period at the last audit.",
	})
	reg.MustRegister(duration, success, failure, unsettled, unprocessed)
	return &JobMetrics{
		duration:    duration,
		success:     success,
		failure:     failure,
		unsettled:   unsettled,
		unprocessed: unprocessed,
	}
}

func (m *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (m *JobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (m *JobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// SetUnsettled publishes the size of the stale payment backlog.
func (m *JobMetrics) SetUnsettled(count int64) {
	if m == nil || m.unsettled == nil {
		return
	}
	m.unsettled.Set(float64(count))
}

// SetUnprocessed publishes the number of deliveries awaiting manual remediation.
func (m *JobMetrics) SetUnprocessed(count int64) {
	if m == nil || m.unprocessed == nil {
		return
	}
	m.unprocessed.Set(float64(count))
}
