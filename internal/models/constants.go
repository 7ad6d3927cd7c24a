package models

const (
	// DefaultSuggestionLimit caps ranked pairings returned to dispatchers.
	DefaultSuggestionLimit = 5

	// DefaultMaxBookingDays is how far ahead a trip may be booked.
	DefaultMaxBookingDays = 180

	// DefaultPendingThresholdHours marks REQUESTED bookings as stale for
	// escalation reminders.
	DefaultPendingThresholdHours = 24

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 128

	// ReminderStateTTL is how long escalation dedupe state lives, in seconds.
	ReminderStateTTL = 24 * 60 * 60
)
