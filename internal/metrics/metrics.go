package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsPublishedTotal counts job messages published per queue
	JobsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_published_total",
			Help: "Total number of job messages published to the broker.",
		},
		[]string{"queue"},
	)

	// JobsProcessedTotal counts worker outcomes per job type
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of job messages processed by workers.",
		},
		[]string{"job_type", "status"}, // status: success/terminal/transient
	)

	// PendingWaiters tracks the size of the correlation waiter table
	PendingWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_pending_waiters",
			Help: "Number of in-flight reply-expecting calls awaiting a response.",
		},
	)

	// OrphanedResponsesTotal counts responses with no registered waiter
	OrphanedResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_orphaned_responses_total",
			Help: "Responses discarded because their waiter already timed out or the delivery was a duplicate.",
		},
	)

	// WaitTimeoutsTotal counts submit-and-wait calls that hit the deadline
	WaitTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_wait_timeouts_total",
			Help: "Total number of submit-and-wait calls that timed out.",
		},
	)
)
