package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncCollection("completed")
	m.IncCollection("completed")
	m.IncDisbursement("timeout")
	m.IncCallback("stk", "")
	m.ObserveGateway("b2c", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := sampleValue(mfs, "payflow_collections_total", map[string]string{"outcome": "completed"}); err != nil || got != 2 {
		t.Fatalf("expected 2 completed collections, got %f (%v)", got, err)
	}
	if got, err := sampleValue(mfs, "payflow_disbursements_total", map[string]string{"outcome": "timeout"}); err != nil || got != 1 {
		t.Fatalf("expected 1 timed out payout, got %f (%v)", got, err)
	}
	if got, err := sampleValue(mfs, "payflow_gateway_callbacks_total", map[string]string{"kind": "stk", "result": "unknown"}); err != nil || got != 1 {
		t.Fatalf("empty result label should normalize to unknown, got %f (%v)", got, err)
	}
	if got, err := sampleValue(mfs, "payflow_gateway_request_duration_seconds", map[string]string{"operation": "b2c"}); err != nil || got <= 0 {
		t.Fatalf("expected gateway latency recorded, got %f (%v)", got, err)
	}
}

func TestNilPaymentMetricsIsNoop(t *testing.T) {
	var m *PaymentMetrics
	m.IncCollection("completed")
	m.IncDisbursement("failed")
	m.IncCallback("b2c", "ok")
	m.ObserveGateway("stk", time.Second)

	NewPaymentMetrics(nil).IncCollection("completed")
}
