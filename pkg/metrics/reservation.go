package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the reservation counters.
const (
	OutcomeSuccess      = "success"
	OutcomeConflict     = "conflict"
	OutcomeInsufficient = "insufficient"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// ReservationMetrics counts reserve/confirm/release outcomes per resource.
type ReservationMetrics struct {
	operations *prometheus.CounterVec
	released   prometheus.Counter
}

// NewReservationMetrics registers the reservation counters. A nil registerer
// yields a no-op recorder.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Reservation engine operations by resource, operation and outcome.",
	}, []string{"resource", "operation", "outcome"})
	released := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_holds_released_total",
		Help:      "Slot holds released by the expiry sweep.",
	})
	reg.MustRegister(operations, released)
	return &ReservationMetrics{operations: operations, released: released}
}

// Observe increments the counter for a single operation outcome.
func (m *ReservationMetrics) Observe(resource, operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(resource), normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// AddExpiredHolds records holds released by the sweep.
func (m *ReservationMetrics) AddExpiredHolds(n int) {
	if m == nil || m.released == nil || n <= 0 {
		return
	}
	m.released.Add(float64(n))
}
