package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "bookings_created_total",
			Help:      "Booking drafts created.",
		},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"status"},
	)

	approvalDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "approval_decisions_total",
			Help:      "Approval decisions by outcome.",
		},
		[]string{"decision"},
	)

	assignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "assignments_total",
			Help:      "Assignments by change kind.",
		},
		[]string{"kind"},
	)

	escalationReminders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "escalation_reminders_total",
			Help:      "Reminders published for stale pending bookings.",
		},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetbook",
			Name:      "sync_tasks_total",
			Help:      "Schedule sync tasks by final status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			bookingTransitions,
			approvalDecisions,
			assignments,
			escalationReminders,
			syncTasks,
		)
	})
}

func IncBookingsCreated() {
	bookingsCreated.Inc()
}

func IncBookingTransitions(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncApprovalDecisions(decision string) {
	approvalDecisions.WithLabelValues(decision).Inc()
}

func IncAssignments(kind string) {
	assignments.WithLabelValues(kind).Inc()
}

func IncEscalationReminders() {
	escalationReminders.Inc()
}

func IncSyncTasks(status string) {
	syncTasks.WithLabelValues(status).Inc()
}
