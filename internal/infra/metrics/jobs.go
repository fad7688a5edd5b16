package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcileSweepTotal) }

var reconcileSweepTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reconcile_sweep_items_total",
		Help: "Stale pending transactions re-verified by the operator sweep, labeled by result.",
	},
	[]string{"result"}, // 'success', 'failed', 'pending', 'error'
)

func IncSweepItem(result string) {
	reconcileSweepTotal.WithLabelValues(norm(result)).Inc()
}
