package events

import (
	"encoding/json"
	"sync"
	"time"

	"fleetbook/internal/models"
)

const (
	EventBookingSubmitted      = "booking_submitted"
	EventBookingApproved       = "booking_approved"
	EventBookingRejected       = "booking_rejected"
	EventBookingCancelled      = "booking_cancelled"
	EventBookingStatusChanged  = "booking_status_changed"
	EventAssignmentCreated     = "assignment_created"
	EventAssignmentUpdated     = "assignment_updated"
	EventBookingPendingTooLong = "booking_pending_too_long"
)

// BookingEventPayload is the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   int64         `json:"booking_id"`
	RequesterID int64         `json:"requester_id"`
	Purpose     string        `json:"purpose"`
	Status      models.Status `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	ChangedBy   int64         `json:"changed_by,omitempty"`
}

// ApprovalNotification is the notification-ready message produced by the
// approval workflow. Delivery belongs to the notifier, not to the core.
type ApprovalNotification struct {
	PayloadID  string    `json:"payload_id"`
	BookingID  int64     `json:"booking_id"`
	Verb       string    `json:"verb"`
	Reason     string    `json:"reason,omitempty"`
	ApproverID int64     `json:"approver_id"`
	DecidedAt  time.Time `json:"decided_at"`
}

// AssignmentNotification carries an assignment change, including the
// previous-vs-new diff on updates, for notification and audit consumers.
type AssignmentNotification struct {
	PayloadID         string            `json:"payload_id"`
	BookingID         int64             `json:"booking_id"`
	Kind              models.ChangeKind `json:"kind"`
	VehicleID         int64             `json:"vehicle_id"`
	DriverID          int64             `json:"driver_id"`
	PreviousVehicleID *int64            `json:"previous_vehicle_id,omitempty"`
	PreviousDriverID  *int64            `json:"previous_driver_id,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	ChangedBy         int64             `json:"changed_by"`
}

// PendingReminderPayload flags a REQUESTED booking that has waited past the
// escalation threshold.
type PendingReminderPayload struct {
	BookingID    int64     `json:"booking_id"`
	RequesterID  int64     `json:"requester_id"`
	HoursWaiting int64     `json:"hours_waiting"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
