package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_dispatches_completed_total",
			Help: "Dispatches that reached completed state",
		},
		[]string{"channel"},
	)

	dispatchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_dispatches_failed_total",
			Help: "Dispatches that reached failed state",
		},
		[]string{"channel"},
	)

	tasksQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_recipient_tasks_queued_total",
			Help: "Recipient tasks created by the dispatch runner",
		},
		[]string{"channel"},
	)

	deliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_delivery_attempts_total",
			Help: "Recipient delivery attempts partitioned by outcome",
		},
		[]string{"channel", "outcome"},
	)
)
