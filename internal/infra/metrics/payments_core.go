package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentCallbacksTotal,
		paymentTransitionsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Ledger entries by gateway and status (pending/success/failed).",
		},
		[]string{"gateway", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_minor_total",
			Help: "The total value of successful payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	// source: webhook|verify|sweep
	// outcome: success|failed|pending|duplicate|ignored|unknown_reference|signature|error
	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Reconciliation attempts by gateway, source and outcome.",
		},
		[]string{"gateway", "source", "outcome"},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Ledger transitions out of pending, by gateway and target status.",
		},
		[]string{"gateway", "to"},
	)
)

func IncPayment(gateway, status string) {
	paymentsTotal.WithLabelValues(norm(gateway), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncCallback(gateway, source, outcome string) {
	paymentCallbacksTotal.WithLabelValues(norm(gateway), norm(source), norm(outcome)).Inc()
}

func IncTransition(gateway, to string) {
	paymentTransitionsTotal.WithLabelValues(norm(gateway), norm(to)).Inc()
}
