package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	BlocksEnforced   prometheus.Counter
	CooldownsGranted prometheus.Counter
	SanctionsApplied *prometheus.CounterVec
	AlarmsScheduled  *prometheus.CounterVec
	TimerMode        *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BlocksEnforced: factory.NewCounter(prometheus.CounterOpts{
			Name: "questlock_blocks_enforced_total",
			Help: "Foreground apps sent home or covered by the lock surface",
		}),
		CooldownsGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "questlock_cooldowns_granted_total",
			Help: "Temporary unlocks written to the ledger",
		}),
		SanctionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questlock_sanctions_applied_total",
			Help: "Penalties applied by kind",
		}, []string{"kind"}),
		AlarmsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questlock_alarms_scheduled_total",
			Help: "Alarm callbacks requested by kind",
		}, []string{"kind"}),
		TimerMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "questlock_timer_mode",
			Help: "Current session timer mode (1 for active mode)",
		}, []string{"mode"}),
	}
}
