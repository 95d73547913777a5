package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "poll_cycles_total",
		Help:      "Completed polling cycles.",
	})

	cyclePanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "poll_cycle_panics_total",
		Help:      "Polling cycles aborted by an unexpected panic.",
	})

	fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "slot_fetch_errors_total",
		Help:      "Per-target slot search failures.",
	})

	newSlotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "new_slots_total",
		Help:      "Newly appeared free slots across all cycles.",
	})

	freeSlotsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "minuet",
		Name:      "free_slots_current",
		Help:      "Free slots observed in the latest cycle.",
	})

	notificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "notifications_sent_total",
		Help:      "Successfully delivered notifications.",
	})

	notificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minuet",
		Name:      "notifications_failed_total",
		Help:      "Notifications dropped after exhausting retries.",
	})
)
