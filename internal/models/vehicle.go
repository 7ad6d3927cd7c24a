package models

import "time"

type VehicleType string

const (
	VehicleSedan  VehicleType = "sedan"
	VehicleVan    VehicleType = "van"
	VehiclePickup VehicleType = "pickup"
	VehicleBus    VehicleType = "bus"
	VehicleOther  VehicleType = "other"
)

type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleInactive    VehicleStatus = "inactive"
)

type Vehicle struct {
	ID              int64         `yaml:"id" json:"id"`
	Registration    string        `yaml:"registration" json:"registration"`
	Type            VehicleType   `yaml:"type" json:"type"`
	SeatingCapacity int           `yaml:"seating_capacity" json:"seating_capacity"`
	Status          VehicleStatus `yaml:"status" json:"status"`
	CreatedAt       time.Time     `yaml:"-" json:"created_at"`
	UpdatedAt       time.Time     `yaml:"-" json:"updated_at"`
}

// Assignable reports whether the vehicle may be booked at all. Capacity and
// window checks are separate.
func (v *Vehicle) Assignable() bool {
	return v.Status == VehicleActive
}

// SpareSeats returns leftover capacity for a passenger count. Negative means
// the vehicle is too small.
func (v *Vehicle) SpareSeats(passengers int) int {
	return v.SeatingCapacity - passengers
}
