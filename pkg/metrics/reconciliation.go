package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconciliationMetrics tracks the sweep over orders and payments whose
// local state disagrees with what Stripe reported.
type ReconciliationMetrics struct {
	inconsistencies *prometheus.GaugeVec
	expiredOrders   prometheus.Counter
}

// NewReconciliationMetrics registers the sweep metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	inconsistencies := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reconciliation_inconsistencies",
		Help: "Rows flagged by the reconciliation sweep, by kind.",
	}, []string{"kind"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_expired_total",
		Help: "Orders cancelled by the unpaid-order expiry job.",
	})
	reg.MustRegister(inconsistencies, expired)
	return &ReconciliationMetrics{
		inconsistencies: inconsistencies,
		expiredOrders:   expired,
	}
}

// SetInconsistencies records the current count for a sweep kind.
func (r *ReconciliationMetrics) SetInconsistencies(kind string, count float64) {
	if r == nil || r.inconsistencies == nil {
		return
	}
	r.inconsistencies.WithLabelValues(normalizeLabel(kind)).Set(count)
}

// AddExpiredOrders counts orders cancelled by the expiry job.
func (r *ReconciliationMetrics) AddExpiredOrders(count int) {
	if r == nil || r.expiredOrders == nil {
		return
	}
	r.expiredOrders.Add(float64(count))
}
