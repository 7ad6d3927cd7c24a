package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"fleetbook/internal/models"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// mockRepo implements domain.Repository for service tests.
type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBooking(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) TransitionBooking(ctx context.Context, id, version int64, next models.Status) (*models.Booking, error) {
	args := m.Called(ctx, id, version, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) UpdateTripDetails(ctx context.Context, id, version int64, details models.TripDetails) error {
	args := m.Called(ctx, id, version, details)
	return args.Error(0)
}

func (m *mockRepo) DeleteBooking(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) GetPendingRequests(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockRepo) GetBookingsInWindow(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockRepo) RecordApproval(ctx context.Context, approval *models.Approval, bookingVersion int64) (*models.Booking, error) {
	args := m.Called(ctx, approval, bookingVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockRepo) GetApprovalsByBooking(ctx context.Context, bookingID int64) ([]models.Approval, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Approval), args.Error(1)
}

func (m *mockRepo) GetAssignmentByBooking(ctx context.Context, bookingID int64) (*models.Assignment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assignment), args.Error(1)
}

func (m *mockRepo) GetOverlappingAssignments(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) ([]models.Assignment, error) {
	args := m.Called(ctx, resource, resourceID, window, excludeBookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assignment), args.Error(1)
}

func (m *mockRepo) CreateAssignment(ctx context.Context, assignment *models.Assignment, bookingVersion int64) (*models.AssignmentChange, error) {
	args := m.Called(ctx, assignment, bookingVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssignmentChange), args.Error(1)
}

func (m *mockRepo) UpdateAssignment(ctx context.Context, bookingID, bookingVersion int64, vehicleID, driverID int64, notes string, changedBy int64) (*models.Assignment, *models.AssignmentChange, error) {
	args := m.Called(ctx, bookingID, bookingVersion, vehicleID, driverID, notes, changedBy)
	var assignment *models.Assignment
	var change *models.AssignmentChange
	if args.Get(0) != nil {
		assignment = args.Get(0).(*models.Assignment)
	}
	if args.Get(1) != nil {
		change = args.Get(1).(*models.AssignmentChange)
	}
	return assignment, change, args.Error(2)
}

func (m *mockRepo) GetAssignmentHistory(ctx context.Context, bookingID int64) ([]models.AssignmentChange, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AssignmentChange), args.Error(1)
}

func (m *mockRepo) GetLastAssignmentTimes(ctx context.Context) (map[int64]time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]time.Time), args.Error(1)
}

func (m *mockRepo) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *mockRepo) GetActiveVehicles(ctx context.Context) ([]models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *mockRepo) GetAllVehicles(ctx context.Context) ([]models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *mockRepo) GetDriver(ctx context.Context, id int64) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockRepo) GetActiveDrivers(ctx context.Context) ([]models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Driver), args.Error(1)
}

func (m *mockRepo) GetAllDrivers(ctx context.Context) ([]models.Driver, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Driver), args.Error(1)
}

func (m *mockRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockRepo) GetUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockRepo) CreateBlockingEvent(ctx context.Context, event *models.BlockingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockRepo) DeleteBlockingEvent(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) GetBlockingEvents(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window) ([]models.BlockingEvent, error) {
	args := m.Called(ctx, resource, resourceID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BlockingEvent), args.Error(1)
}

// mockSyncWorker records enqueued tasks.
type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueBookingUpsert(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockSyncWorker) EnqueueStatusUpdate(ctx context.Context, bookingID int64, status models.Status) error {
	args := m.Called(ctx, bookingID, status)
	return args.Error(0)
}

func (m *mockSyncWorker) EnqueueScheduleSync(ctx context.Context, start, end time.Time) error {
	args := m.Called(ctx, start, end)
	return args.Error(0)
}

// mockStateRepo backs escalation dedupe tests.
type mockStateRepo struct {
	mock.Mock
}

func (m *mockStateRepo) GetReminder(ctx context.Context, bookingID int64) (*models.ReminderState, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReminderState), args.Error(1)
}

func (m *mockStateRepo) SetReminder(ctx context.Context, state *models.ReminderState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockStateRepo) ClearReminder(ctx context.Context, bookingID int64) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *mockStateRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// capturingBus records published events for assertions.
type capturingBus struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	Type    string
	Payload []byte
}

func (b *capturingBus) PublishJSON(eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, capturedEvent{Type: eventType, Payload: raw})
	return nil
}

func (b *capturingBus) published() []capturedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedEvent(nil), b.events...)
}

func (b *capturingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}
