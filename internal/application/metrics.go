package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the synchronization and resilience events worth watching in
// production: how often contexts broadcast, how often they repair a tier, and
// how often a remote call degraded to its local fallback.
type Metrics struct {
	BroadcastsSent    *prometheus.CounterVec
	UpdatesApplied    *prometheus.CounterVec
	TierRepairs       *prometheus.CounterVec
	DecodeFailures    *prometheus.CounterVec
	GuardedFallbacks  *prometheus.CounterVec
	RemoteAvailable   prometheus.Gauge
	AvailabilityFlips prometheus.Counter
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid default-registry collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BroadcastsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sync_broadcasts_sent_total",
			Help: "Full-collection broadcasts sent to other contexts, by entity type.",
		}, []string{"entity"}),
		UpdatesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sync_updates_applied_total",
			Help: "Incoming collection updates applied to the local tiers, by entity type.",
		}, []string{"entity"}),
		TierRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sync_tier_repairs_total",
			Help: "Times an empty durable tier was repaired from the volatile tier.",
		}, []string{"entity"}),
		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sync_decode_failures_total",
			Help: "Persisted payloads that failed to decode and degraded to empty.",
		}, []string{"entity"}),
		GuardedFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_remote_guarded_fallbacks_total",
			Help: "Guarded remote calls that ran their local fallback, by label.",
		}, []string{"label"}),
		RemoteAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_remote_available",
			Help: "1 when the remote backend is considered available.",
		}),
		AvailabilityFlips: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_remote_availability_flips_total",
			Help: "Transitions of the remote availability flag.",
		}),
	}
}

// NopMetrics returns metrics bound to a throwaway registry.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
