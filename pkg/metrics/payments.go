package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// knownGateways bounds the gateway label. Any other name is counted as "other".
var knownGateways = map[string]struct{}{
	"edviron": {},
}

// Gateway call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
	OutcomeProtocol    = "protocol_error"
)

// PaymentMetrics records gateway calls, created payments and webhook deliveries.
// A nil *PaymentMetrics is valid and records nothing.
type PaymentMetrics struct {
	gatewayDuration *prometheus.HistogramVec
	paymentsCreated *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"op", "outcome"})
	paymentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Payment requests accepted by the gateway and persisted.",
	}, []string{"gateway"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook deliveries by processing outcome.",
	}, []string{"outcome"})
	reg.MustRegister(gatewayDuration, paymentsCreated, webhooks)
	return &PaymentMetrics{
		gatewayDuration: gatewayDuration,
		paymentsCreated: paymentsCreated,
		webhooks:        webhooks,
	}
}

// ObserveGatewayCall records one gateway round trip.
func (m *PaymentMetrics) ObserveGatewayCall(op, outcome string, duration time.Duration) {
	if m == nil || m.gatewayDuration == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *PaymentMetrics) IncPaymentCreated(gateway string) {
	if m == nil || m.paymentsCreated == nil {
		return
	}
	m.paymentsCreated.WithLabelValues(gatewayLabel(gateway)).Inc()
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func gatewayLabel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := knownGateways[name]; ok {
		return name
	}
	return "other"
}
