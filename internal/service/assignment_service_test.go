package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fleetbook/internal/database"
	"fleetbook/internal/events"
	"fleetbook/internal/models"
)

func approvedBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:                id,
		RequesterID:       3,
		Purpose:           "team offsite",
		PassengerCount:    3,
		StartTime:         time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndTime:           time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		VehiclePreference: models.PreferenceAny,
		Status:            models.StatusApproved,
		Version:           3,
	}
}

func newAssignmentService(repo *mockRepo, bus *capturingBus, sync *mockSyncWorker) *AssignmentService {
	availability := NewAvailabilityService(repo, testLogger())
	if sync == nil {
		// Typed nil would make the interface non-nil inside the service.
		return NewAssignmentService(repo, availability, bus, nil, nil, testLogger())
	}
	return NewAssignmentService(repo, availability, bus, sync, nil, testLogger())
}

func ptr(v int64) *int64 { return &v }

// expectFree stubs the overlap and blocking lookups so the resource looks idle.
func expectFree(repo *mockRepo, resource models.ResourceType, resourceID int64) {
	repo.On("GetOverlappingAssignments", mock.Anything, resource, resourceID, mock.Anything, mock.Anything).
		Return([]models.Assignment{}, nil)
	repo.On("GetBlockingEvents", mock.Anything, resource, resourceID, mock.Anything).
		Return([]models.BlockingEvent{}, nil)
}

func TestAssignmentCreate(t *testing.T) {
	ctx := context.Background()
	dispatcher := &models.User{ID: 7, Role: models.RoleFleetAdmin}

	t.Run("ManualSuccess", func(t *testing.T) {
		repo := new(mockRepo)
		bus := &capturingBus{}
		svc := newAssignmentService(repo, bus, nil)

		booking := approvedBooking(1)
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetVehicle", ctx, int64(2)).
			Return(&models.Vehicle{ID: 2, Type: models.VehicleVan, SeatingCapacity: 5, Status: models.VehicleActive}, nil)
		repo.On("GetDriver", ctx, int64(4)).
			Return(&models.Driver{ID: 4, Status: models.DriverActive}, nil)
		expectFree(repo, models.ResourceVehicle, 2)
		expectFree(repo, models.ResourceDriver, 4)
		repo.On("CreateAssignment", ctx, mock.AnythingOfType("*models.Assignment"), int64(3)).
			Return(&models.AssignmentChange{BookingID: 1, Kind: models.ChangeCreated, VehicleID: 2, DriverID: 4}, nil)

		assignment, change, err := svc.Create(ctx, AssignmentInput{
			BookingID:      1,
			BookingVersion: 3,
			VehicleID:      ptr(2),
			DriverID:       ptr(4),
			AssignedBy:     dispatcher.ID,
		}, dispatcher)
		require.NoError(t, err)

		assert.Equal(t, int64(2), assignment.VehicleID)
		assert.Equal(t, int64(4), assignment.DriverID)
		assert.Equal(t, models.ChangeCreated, change.Kind)
		assert.Nil(t, change.PreviousVehicleID)
		assert.Equal(t, []string{events.EventAssignmentCreated}, bus.types())
		repo.AssertExpectations(t)
	})

	t.Run("RoleCannotAssign", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		requester := &models.User{ID: 3, Role: models.RoleRequester}
		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1}, requester)
		assert.ErrorIs(t, err, database.ErrUnauthorized)
	})

	t.Run("NotApproved", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		booking := approvedBooking(1)
		booking.Status = models.StatusRequested
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1}, dispatcher)
		assert.ErrorIs(t, err, database.ErrInvalidState)
	})

	t.Run("DuplicateAssignment", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).
			Return(&models.Assignment{ID: 9, BookingID: 1}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1}, dispatcher)
		assert.ErrorIs(t, err, database.ErrDuplicateAssignment)
	})

	t.Run("ManualMissingDriver", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, VehicleID: ptr(2)}, dispatcher)
		assert.ErrorIs(t, err, database.ErrIncompleteManualAssignment)
	})

	t.Run("VehicleInMaintenance", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetVehicle", ctx, int64(2)).
			Return(&models.Vehicle{ID: 2, SeatingCapacity: 5, Status: models.VehicleMaintenance}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, VehicleID: ptr(2), DriverID: ptr(4)}, dispatcher)
		assert.ErrorIs(t, err, database.ErrResourceUnavailable)
	})

	t.Run("VehicleTooSmall", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		booking := approvedBooking(1)
		booking.PassengerCount = 6
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetVehicle", ctx, int64(2)).
			Return(&models.Vehicle{ID: 2, SeatingCapacity: 4, Status: models.VehicleActive}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, VehicleID: ptr(2), DriverID: ptr(4)}, dispatcher)
		assert.ErrorIs(t, err, database.ErrResourceUnavailable)
	})

	t.Run("VehicleAlreadyReserved", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetVehicle", ctx, int64(2)).
			Return(&models.Vehicle{ID: 2, SeatingCapacity: 5, Status: models.VehicleActive}, nil)
		repo.On("GetOverlappingAssignments", mock.Anything, models.ResourceVehicle, int64(2), mock.Anything, mock.Anything).
			Return([]models.Assignment{{ID: 20, BookingID: 8, VehicleID: 2}}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, VehicleID: ptr(2), DriverID: ptr(4)}, dispatcher)
		assert.ErrorIs(t, err, database.ErrResourceUnavailable)
	})

	t.Run("DriverOffSchedule", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		// Booking window is Tuesday; driver only works Mondays.
		schedule := models.WeeklySchedule{"monday": {Start: "08:00", End: "18:00", Available: true}}
		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetVehicle", ctx, int64(2)).
			Return(&models.Vehicle{ID: 2, SeatingCapacity: 5, Status: models.VehicleActive}, nil)
		expectFree(repo, models.ResourceVehicle, 2)
		repo.On("GetDriver", ctx, int64(4)).
			Return(&models.Driver{ID: 4, Status: models.DriverActive, Schedule: &schedule}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, VehicleID: ptr(2), DriverID: ptr(4)}, dispatcher)
		assert.ErrorIs(t, err, database.ErrResourceUnavailable)
	})

	t.Run("AutoRanksVehicles", func(t *testing.T) {
		repo := new(mockRepo)
		bus := &capturingBus{}
		svc := newAssignmentService(repo, bus, nil)

		booking := approvedBooking(1)
		booking.VehiclePreference = models.PreferenceVan
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)

		// Sedan has fewest spare seats but does not match the preference; of the
		// two vans the tighter fit wins.
		repo.On("GetActiveVehicles", ctx).Return([]models.Vehicle{
			{ID: 1, Type: models.VehicleSedan, SeatingCapacity: 4, Status: models.VehicleActive},
			{ID: 2, Type: models.VehicleVan, SeatingCapacity: 8, Status: models.VehicleActive},
			{ID: 3, Type: models.VehicleVan, SeatingCapacity: 5, Status: models.VehicleActive},
		}, nil)
		for _, id := range []int64{1, 2, 3} {
			expectFree(repo, models.ResourceVehicle, id)
		}
		repo.On("GetActiveDrivers", ctx).Return([]models.Driver{
			{ID: 9, Status: models.DriverActive},
			{ID: 5, Status: models.DriverActive},
		}, nil)
		expectFree(repo, models.ResourceDriver, 9)
		expectFree(repo, models.ResourceDriver, 5)

		repo.On("CreateAssignment", ctx, mock.AnythingOfType("*models.Assignment"), int64(3)).
			Return(&models.AssignmentChange{Kind: models.ChangeCreated}, nil)

		assignment, _, err := svc.Create(ctx, AssignmentInput{
			BookingID:      1,
			BookingVersion: 3,
			AutoAssign:     true,
			AssignedBy:     dispatcher.ID,
		}, dispatcher)
		require.NoError(t, err)

		assert.Equal(t, int64(3), assignment.VehicleID, "tightest matching van wins")
		assert.Equal(t, int64(5), assignment.DriverID, "lowest driver id wins")
	})

	t.Run("AutoNoVehicle", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetActiveVehicles", ctx).Return([]models.Vehicle{}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, AutoAssign: true}, dispatcher)
		assert.ErrorIs(t, err, database.ErrNoAvailableResource)
	})

	t.Run("AutoNoDriver", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		repo.On("GetBooking", ctx, int64(1)).Return(approvedBooking(1), nil)
		repo.On("GetAssignmentByBooking", ctx, int64(1)).Return(nil, database.ErrNotFound)
		repo.On("GetActiveVehicles", ctx).Return([]models.Vehicle{
			{ID: 1, Type: models.VehicleVan, SeatingCapacity: 5, Status: models.VehicleActive},
		}, nil)
		expectFree(repo, models.ResourceVehicle, 1)
		repo.On("GetActiveDrivers", ctx).Return([]models.Driver{}, nil)

		_, _, err := svc.Create(ctx, AssignmentInput{BookingID: 1, AutoAssign: true}, dispatcher)
		assert.ErrorIs(t, err, database.ErrNoAvailableResource)
	})
}

func TestAssignmentUpdate(t *testing.T) {
	ctx := context.Background()
	dispatcher := &models.User{ID: 7, Role: models.RoleManager}

	t.Run("RecordsDiff", func(t *testing.T) {
		repo := new(mockRepo)
		bus := &capturingBus{}
		sync := new(mockSyncWorker)
		svc := newAssignmentService(repo, bus, sync)

		booking := approvedBooking(1)
		booking.Status = models.StatusAssigned
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetVehicle", ctx, int64(6)).
			Return(&models.Vehicle{ID: 6, SeatingCapacity: 5, Status: models.VehicleActive}, nil)
		repo.On("GetDriver", ctx, int64(4)).
			Return(&models.Driver{ID: 4, Status: models.DriverActive}, nil)
		expectFree(repo, models.ResourceVehicle, 6)
		expectFree(repo, models.ResourceDriver, 4)

		prevVehicle, prevDriver := int64(2), int64(4)
		repo.On("UpdateAssignment", ctx, int64(1), int64(3), int64(6), int64(4), "swap van", int64(7)).
			Return(
				&models.Assignment{BookingID: 1, VehicleID: 6, DriverID: 4, Notes: "swap van"},
				&models.AssignmentChange{
					BookingID:         1,
					Kind:              models.ChangeUpdated,
					PreviousVehicleID: &prevVehicle,
					PreviousDriverID:  &prevDriver,
					VehicleID:         6,
					DriverID:          4,
					ChangedBy:         7,
				}, nil)
		sync.On("EnqueueScheduleSync", ctx, booking.StartTime, booking.EndTime).Return(nil)

		assignment, change, err := svc.Update(ctx, AssignmentInput{
			BookingID:      1,
			BookingVersion: 3,
			VehicleID:      ptr(6),
			DriverID:       ptr(4),
			Notes:          "swap van",
			AssignedBy:     dispatcher.ID,
		}, dispatcher)
		require.NoError(t, err)

		assert.Equal(t, int64(6), assignment.VehicleID)
		require.NotNil(t, change.PreviousVehicleID)
		assert.Equal(t, int64(2), *change.PreviousVehicleID)
		assert.Equal(t, []string{events.EventAssignmentUpdated}, bus.types())
		sync.AssertExpectations(t)
	})

	t.Run("RejectedForTerminalBooking", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		booking := approvedBooking(1)
		booking.Status = models.StatusCompleted
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)

		_, _, err := svc.Update(ctx, AssignmentInput{BookingID: 1}, dispatcher)
		assert.ErrorIs(t, err, database.ErrInvalidState)
	})
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()

	t.Run("RankedPairsWithReasons", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		booking := approvedBooking(1)
		booking.VehiclePreference = models.PreferenceVan
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetActiveVehicles", ctx).Return([]models.Vehicle{
			{ID: 1, Type: models.VehicleVan, SeatingCapacity: 3, Status: models.VehicleActive},
			{ID: 2, Type: models.VehicleSedan, SeatingCapacity: 4, Status: models.VehicleActive},
		}, nil)
		expectFree(repo, models.ResourceVehicle, 1)
		expectFree(repo, models.ResourceVehicle, 2)
		repo.On("GetActiveDrivers", ctx).Return([]models.Driver{
			{ID: 5, Status: models.DriverActive},
		}, nil)
		expectFree(repo, models.ResourceDriver, 5)

		suggestions, err := svc.Suggest(ctx, 1, 0)
		require.NoError(t, err)
		require.Len(t, suggestions, 2)

		first := suggestions[0]
		assert.Equal(t, int64(1), first.Vehicle.ID)
		assert.True(t, first.MatchesPreference)
		assert.Equal(t, 0, first.SpareSeats)
		assert.Contains(t, first.Reasons, "matches preferred vehicle type")
		assert.Contains(t, first.Reasons, "exact seat fit")
		assert.Contains(t, first.Reasons, "driver available for requested window")

		second := suggestions[1]
		assert.Equal(t, int64(2), second.Vehicle.ID)
		assert.False(t, second.MatchesPreference)
		assert.Contains(t, second.Reasons, "1 spare seats")
	})

	t.Run("LimitCapsOutput", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newAssignmentService(repo, &capturingBus{}, nil)

		booking := approvedBooking(1)
		repo.On("GetBooking", ctx, int64(1)).Return(booking, nil)
		repo.On("GetActiveVehicles", ctx).Return([]models.Vehicle{
			{ID: 1, Type: models.VehicleVan, SeatingCapacity: 5, Status: models.VehicleActive},
			{ID: 2, Type: models.VehicleVan, SeatingCapacity: 5, Status: models.VehicleActive},
		}, nil)
		expectFree(repo, models.ResourceVehicle, 1)
		expectFree(repo, models.ResourceVehicle, 2)
		repo.On("GetActiveDrivers", ctx).Return([]models.Driver{
			{ID: 5, Status: models.DriverActive},
			{ID: 6, Status: models.DriverActive},
		}, nil)
		expectFree(repo, models.ResourceDriver, 5)
		expectFree(repo, models.ResourceDriver, 6)

		suggestions, err := svc.Suggest(ctx, 1, 3)
		require.NoError(t, err)
		assert.Len(t, suggestions, 3)
	})
}

func TestRankers(t *testing.T) {
	ctx := context.Background()
	drivers := []models.Driver{{ID: 3}, {ID: 1}, {ID: 2}}

	t.Run("ByID", func(t *testing.T) {
		ranked, err := ByIDRanker{}.Rank(ctx, drivers)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ranked[0].ID)
		assert.Equal(t, int64(2), ranked[1].ID)
		assert.Equal(t, int64(3), ranked[2].ID)
		// Input order untouched.
		assert.Equal(t, int64(3), drivers[0].ID)
	})

	t.Run("LeastRecentlyAssigned", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetLastAssignmentTimes", ctx).Return(map[int64]time.Time{
			1: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			3: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		}, nil)

		ranked, err := NewLeastRecentlyAssignedRanker(repo).Rank(ctx, drivers)
		require.NoError(t, err)

		// Never-assigned driver 2 first, then oldest assignment.
		assert.Equal(t, int64(2), ranked[0].ID)
		assert.Equal(t, int64(3), ranked[1].ID)
		assert.Equal(t, int64(1), ranked[2].ID)
	})
}
