package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/threefoldtech/vaultbridge/pkg"
)

var (
	LocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_locks_total",
			Help: "Total number of accepted locks",
		},
		[]string{"destination_chain"},
	)

	LockedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_locked_amount_total",
		Help: "Sum of all locked amounts",
	})

	UnlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_unlocks_total",
			Help: "Total number of completed unlocks",
		},
		[]string{"source_chain"},
	)

	EmergencyLocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_emergency_locks_total",
		Help: "Total number of locks taken through the emergency path",
	})

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_rejections_total",
			Help: "Total number of rejected operations by error kind",
		},
		[]string{"operation", "kind"},
	)

	SignaturesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_signatures_accepted_total",
		Help: "Total number of validator signatures accumulated on lock records",
	})

	TotalLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_total_locked",
		Help: "Aggregate amount locked through the bridge",
	})

	PendingLocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pending_locks",
		Help: "Number of locks that are neither unlocked nor terminal",
	})

	Paused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_paused",
		Help: "Bridge pause flag (1=paused, 0=running)",
	})

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_published_total",
			Help: "Total number of events published",
		},
		[]string{"subject"},
	)
)

// ObserveState updates the gauges mirroring the bridge state
func ObserveState(state *pkg.BridgeState) {
	TotalLocked.Set(float64(state.TotalLocked))
	PendingLocks.Set(float64(state.Pending))
	if state.Paused {
		Paused.Set(1)
	} else {
		Paused.Set(0)
	}
}

// Reject counts a failed operation under the kind of its error
func Reject(operation string, err error) {
	kind := pkg.KindOf(err)
	label := "internal"
	if kind != 0 {
		label = kind.String()
	}
	RejectionsTotal.WithLabelValues(operation, label).Inc()
}
