package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SlotConflicts    prometheus.Counter
	Notifications    *prometheus.CounterVec
	ReferenceRepairs prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SlotConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_slot_conflicts_total",
			Help: "Appointment mutations rejected because the slot was taken.",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_notifications_total",
			Help: "Lifecycle notifications by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		ReferenceRepairs: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_reference_repairs_total",
			Help: "Owner reference lists rebuilt after an inconsistency was seen.",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry; used by tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
