package models

import "time"

// ReminderState tracks that an escalation reminder was already sent for a
// stale booking, so managers are not pinged on every sweep.
type ReminderState struct {
	BookingID    int64     `json:"booking_id"`
	LastNotified time.Time `json:"last_notified"`
	Count        int       `json:"count"`
}
