package models

import "time"

// ResourceType distinguishes the two schedulable resource kinds.
type ResourceType string

const (
	ResourceVehicle ResourceType = "vehicle"
	ResourceDriver  ResourceType = "driver"
)

func (r ResourceType) Valid() bool {
	return r == ResourceVehicle || r == ResourceDriver
}

type EventKind string

const (
	EventAssignment  EventKind = "assignment"
	EventMaintenance EventKind = "maintenance"
	EventCustom      EventKind = "custom"
)

// CalendarEvent is one entry on a resource timeline: either a committed
// assignment projected through its booking window, or a blocking event.
type CalendarEvent struct {
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	Kind         EventKind    `json:"kind"`
	// RefID is the booking id for assignment events and the blocking event id
	// otherwise.
	RefID  int64     `json:"ref_id"`
	Title  string    `json:"title"`
	Status Status    `json:"status,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func (e CalendarEvent) Window() Window {
	return Window{Start: e.Start, End: e.End}
}

// CalendarConflict marks an intersection between two events on the same
// resource timeline.
type CalendarConflict struct {
	OverlapStart time.Time `json:"overlap_start"`
	OverlapEnd   time.Time `json:"overlap_end"`
	RefIDs       []int64   `json:"ref_ids"`
}

// ResourceCalendar is the materialized per-resource view: start-sorted events
// plus any detected overlaps between them.
type ResourceCalendar struct {
	ResourceType ResourceType       `json:"resource_type"`
	ResourceID   int64              `json:"resource_id"`
	Events       []CalendarEvent    `json:"events"`
	Conflicts    []CalendarConflict `json:"conflicts,omitempty"`
}

// BlockingEvent is an ad-hoc manual reservation (maintenance, custom) that
// keeps a resource out of scheduling without a booking.
type BlockingEvent struct {
	ID           int64        `json:"id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	Kind         EventKind    `json:"kind"`
	Title        string       `json:"title"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	CreatedBy    int64        `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
}
