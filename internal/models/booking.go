package models

import "time"

// Status is the lifecycle state of a booking request.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusRequested  Status = "requested"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the legal outgoing edges per status. Terminal statuses
// have no entry.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusRequested, StatusCancelled},
	StatusRequested:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusRequested, StatusApproved, StatusRejected,
		StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is a legal edge. A self-edge is
// allowed and treated as a no-op by callers.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// Editable reports whether trip fields may still be changed or the booking
// deleted outright.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRequested
}

// Committed reports whether the booking's resource reservation must be kept
// conflict-free.
func (s Status) Committed() bool {
	switch s {
	case StatusApproved, StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// CommittedStatuses is the set of statuses whose assignments reserve resources.
var CommittedStatuses = []Status{StatusApproved, StatusAssigned, StatusInProgress, StatusCompleted}

// VehiclePreference is the requester's preferred vehicle type. PreferenceAny
// matches every type.
type VehiclePreference string

const (
	PreferenceAny    VehiclePreference = "any"
	PreferenceSedan  VehiclePreference = "sedan"
	PreferenceVan    VehiclePreference = "van"
	PreferencePickup VehiclePreference = "pickup"
	PreferenceBus    VehiclePreference = "bus"
	PreferenceOther  VehiclePreference = "other"
)

func (p VehiclePreference) Valid() bool {
	switch p {
	case PreferenceAny, PreferenceSedan, PreferenceVan, PreferencePickup, PreferenceBus, PreferenceOther:
		return true
	}
	return false
}

// Matches reports whether a vehicle of the given type satisfies the preference.
func (p VehiclePreference) Matches(t VehicleType) bool {
	return p == PreferenceAny || string(p) == string(t)
}

type Booking struct {
	ID                int64             `json:"id"`
	RequesterID       int64             `json:"requester_id"`
	Department        string            `json:"department"`
	Purpose           string            `json:"purpose"`
	PassengerCount    int               `json:"passenger_count"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	PickupPoint       string            `json:"pickup_point"`
	DropoffPoint      string            `json:"dropoff_point"`
	VehiclePreference VehiclePreference `json:"vehicle_preference"`
	Status            Status            `json:"status"`
	SubmittedAt       *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Version           int64             `json:"version"`
}

// Window returns the booked trip window.
func (b *Booking) Window() Window {
	return Window{Start: b.StartTime, End: b.EndTime}
}

// TripDetails are the requester-editable fields of a booking. Edits are only
// legal while the booking status is Editable.
type TripDetails struct {
	Department        string            `json:"department"`
	Purpose           string            `json:"purpose"`
	PassengerCount    int               `json:"passenger_count"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	PickupPoint       string            `json:"pickup_point"`
	DropoffPoint      string            `json:"dropoff_point"`
	VehiclePreference VehiclePreference `json:"vehicle_preference"`
}
