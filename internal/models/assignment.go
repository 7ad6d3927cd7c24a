package models

import "time"

// Assignment binds an approved booking to one vehicle and one driver. At most
// one non-deleted assignment exists per booking.
type Assignment struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	VehicleID  int64     `json:"vehicle_id"`
	DriverID   int64     `json:"driver_id"`
	AssignedBy int64     `json:"assigned_by"`
	Notes      string    `json:"notes,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// AssignmentChange is the structured diff recorded for every assignment
// create or replace. Previous fields are nil on creation.
type AssignmentChange struct {
	ID                int64      `json:"id"`
	BookingID         int64      `json:"booking_id"`
	Kind              ChangeKind `json:"kind"`
	PreviousVehicleID *int64     `json:"previous_vehicle_id,omitempty"`
	PreviousDriverID  *int64     `json:"previous_driver_id,omitempty"`
	PreviousNotes     *string    `json:"previous_notes,omitempty"`
	VehicleID         int64      `json:"vehicle_id"`
	DriverID          int64      `json:"driver_id"`
	Notes             string     `json:"notes,omitempty"`
	ChangedBy         int64      `json:"changed_by"`
	ChangedAt         time.Time  `json:"changed_at"`
}

// Suggestion is one ranked (vehicle, driver) pairing offered to a dispatcher
// before committing an assignment.
type Suggestion struct {
	Vehicle           Vehicle  `json:"vehicle"`
	Driver            Driver   `json:"driver"`
	MatchesPreference bool     `json:"matches_preference"`
	SpareSeats        int      `json:"spare_seats"`
	Reasons           []string `json:"reasons"`
}
