package domain

import (
	"context"
	"time"

	"fleetbook/internal/models"
)

// Repository is the persistence surface the services depend on. The sqlite
// implementation lives in internal/database.
type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	TransitionBooking(ctx context.Context, id, version int64, next models.Status) (*models.Booking, error)
	UpdateTripDetails(ctx context.Context, id, version int64, details models.TripDetails) error
	DeleteBooking(ctx context.Context, id int64) error
	GetPendingRequests(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
	GetBookingsInWindow(ctx context.Context, start, end time.Time) ([]models.Booking, error)

	RecordApproval(ctx context.Context, approval *models.Approval, bookingVersion int64) (*models.Booking, error)
	GetApprovalsByBooking(ctx context.Context, bookingID int64) ([]models.Approval, error)

	GetAssignmentByBooking(ctx context.Context, bookingID int64) (*models.Assignment, error)
	GetOverlappingAssignments(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) ([]models.Assignment, error)
	CreateAssignment(ctx context.Context, assignment *models.Assignment, bookingVersion int64) (*models.AssignmentChange, error)
	UpdateAssignment(ctx context.Context, bookingID, bookingVersion int64, vehicleID, driverID int64, notes string, changedBy int64) (*models.Assignment, *models.AssignmentChange, error)
	GetAssignmentHistory(ctx context.Context, bookingID int64) ([]models.AssignmentChange, error)
	GetLastAssignmentTimes(ctx context.Context) (map[int64]time.Time, error)

	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	GetActiveVehicles(ctx context.Context) ([]models.Vehicle, error)
	GetAllVehicles(ctx context.Context) ([]models.Vehicle, error)
	GetDriver(ctx context.Context, id int64) (*models.Driver, error)
	GetActiveDrivers(ctx context.Context) ([]models.Driver, error)
	GetAllDrivers(ctx context.Context) ([]models.Driver, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)

	CreateBlockingEvent(ctx context.Context, event *models.BlockingEvent) error
	DeleteBlockingEvent(ctx context.Context, id int64) error
	GetBlockingEvents(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window) ([]models.BlockingEvent, error)
}

// StateRepository stores escalation-reminder dedupe state and rate-limit
// counters, backed by redis with an in-memory fallback.
type StateRepository interface {
	GetReminder(ctx context.Context, bookingID int64) (*models.ReminderState, error)
	SetReminder(ctx context.Context, state *models.ReminderState) error
	ClearReminder(ctx context.Context, bookingID int64) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncWorker accepts fire-and-forget tasks for the external schedule sheet.
type SyncWorker interface {
	EnqueueBookingUpsert(ctx context.Context, booking *models.Booking) error
	EnqueueStatusUpdate(ctx context.Context, bookingID int64, status models.Status) error
	EnqueueScheduleSync(ctx context.Context, start, end time.Time) error
}

// CalendarBuilder materializes per-resource timelines; consumed by the sync
// worker when refreshing the schedule sheet.
type CalendarBuilder interface {
	BuildCalendarView(ctx context.Context, resource models.ResourceType, window models.Window, resourceIDs []int64) ([]models.ResourceCalendar, error)
}
