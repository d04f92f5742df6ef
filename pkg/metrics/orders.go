package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the order metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// OrderMetrics counts order and payment operations and the cases that need
// manual reconciliation.
type OrderMetrics struct {
	operations     *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_operations_total",
		Help: "Order and payment operations by outcome.",
	}, []string{"operation", "outcome"})
	reconciliation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_needs_manual_reconciliation_total",
		Help: "Payments left in a state that needs an operator.",
	}, []string{"reason"})
	reg.MustRegister(operations, reconciliation)
	return &OrderMetrics{
		operations:     operations,
		reconciliation: reconciliation,
	}
}

// RecordOperation counts one operation. The outcome is derived from err unless
// an explicit outcome is given.
func (m *OrderMetrics) RecordOperation(operation string, err error, outcome ...string) {
	if m == nil || m.operations == nil {
		return
	}
	label := OutcomeSuccess
	if err != nil {
		label = OutcomeFailure
	}
	if len(outcome) > 0 && outcome[0] != "" {
		label = outcome[0]
	}
	m.operations.WithLabelValues(normalizeLabel(operation), label).Inc()
}

// IncNeedsReconciliation counts a payment an operator must resolve by hand.
func (m *OrderMetrics) IncNeedsReconciliation(reason string) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
