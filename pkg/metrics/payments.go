package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts money movement outcomes and gateway latency.
type PaymentMetrics struct {
	collections   *prometheus.CounterVec
	disbursements *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	collections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payflow_collections_total",
		Help: "Collection requests and callbacks by outcome.",
	}, []string{"outcome"})
	disbursements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payflow_disbursements_total",
		Help: "Payout attempts and callbacks by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payflow_gateway_callbacks_total",
		Help: "Gateway callbacks received by kind and handling result.",
	}, []string{"kind", "result"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payflow_gateway_request_duration_seconds",
		Help:    "Latency of outbound gateway requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(collections, disbursements, callbacks, gateway)
	return &PaymentMetrics{
		collections:   collections,
		disbursements: disbursements,
		callbacks:     callbacks,
		gateway:       gateway,
	}
}

// IncCollection counts a collection outcome (initiated, completed, failed, cancelled).
func (p *PaymentMetrics) IncCollection(outcome string) {
	if p == nil || p.collections == nil {
		return
	}
	p.collections.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDisbursement counts a payout outcome (initiated, completed, failed, timeout, skipped).
func (p *PaymentMetrics) IncDisbursement(outcome string) {
	if p == nil || p.disbursements == nil {
		return
	}
	p.disbursements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCallback counts a received callback.
func (p *PaymentMetrics) IncCallback(kind, result string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

// ObserveGateway records the latency of one outbound gateway request.
func (p *PaymentMetrics) ObserveGateway(operation string, duration time.Duration) {
	if p == nil || p.gateway == nil {
		return
	}
	p.gateway.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}
