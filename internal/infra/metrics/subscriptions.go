package metrics

import (
	"health-insurance-portal/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		activationsTotal,
		transactionsByStatus,
	)
}

var (
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payable_activations_total",
			Help: "Quotes marked paid and subscriptions activated by a successful payment.",
		},
		[]string{"kind"}, // 'quote', 'subscription'
	)

	transactionsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transactions_by_status",
			Help: "Current number of ledger rows by status.",
		},
		[]string{"status"},
	)
)

func IncActivation(kind model.PayableKind) {
	activationsTotal.WithLabelValues(string(kind)).Inc()
}

func SetTransactionsByStatus(counts map[model.TransactionStatus]int) {
	statuses := []model.TransactionStatus{
		model.TransactionStatusPending,
		model.TransactionStatusSuccess,
		model.TransactionStatusFailed,
		model.TransactionStatusRefunded,
	}
	for _, status := range statuses {
		transactionsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
