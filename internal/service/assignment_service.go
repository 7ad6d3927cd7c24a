package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/events"
	"fleetbook/internal/metrics"
	"fleetbook/internal/models"
)

// AssignmentService resolves vehicle and driver pairs for approved bookings,
// manually or automatically, and keeps the per-booking assignment plus its
// change history.
type AssignmentService struct {
	repo         domain.Repository
	availability *AvailabilityService
	eventBus     domain.EventPublisher
	sync         domain.SyncWorker
	ranker       DriverRanker
	logger       *zerolog.Logger
}

func NewAssignmentService(repo domain.Repository, availability *AvailabilityService, eventBus domain.EventPublisher, sync domain.SyncWorker, ranker DriverRanker, logger *zerolog.Logger) *AssignmentService {
	if ranker == nil {
		ranker = ByIDRanker{}
	}
	return &AssignmentService{
		repo:         repo,
		availability: availability,
		eventBus:     eventBus,
		sync:         sync,
		ranker:       ranker,
		logger:       logger,
	}
}

// AssignmentInput carries one create or update request. In manual mode both
// VehicleID and DriverID must be set; in auto mode either may be left nil and
// is resolved by ranking.
type AssignmentInput struct {
	BookingID      int64
	BookingVersion int64
	VehicleID      *int64
	DriverID       *int64
	AutoAssign     bool
	Notes          string
	AssignedBy     int64
}

// Create assigns resources to an APPROVED booking and moves it to ASSIGNED.
// A booking that already has an assignment is rejected.
func (s *AssignmentService) Create(ctx context.Context, in AssignmentInput, actor *models.User) (*models.Assignment, *models.AssignmentChange, error) {
	if !actor.Role.CanAssign() {
		return nil, nil, fmt.Errorf("%w: role %s cannot assign resources", database.ErrUnauthorized, actor.Role)
	}

	booking, err := s.repo.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.Status != models.StatusApproved {
		return nil, nil, fmt.Errorf("%w: booking %d is %s, expected %s", database.ErrInvalidState, booking.ID, booking.Status, models.StatusApproved)
	}
	if _, err := s.repo.GetAssignmentByBooking(ctx, in.BookingID); err == nil {
		return nil, nil, fmt.Errorf("%w: booking %d", database.ErrDuplicateAssignment, in.BookingID)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, nil, err
	}

	vehicleID, driverID, err := s.resolvePair(ctx, booking, in, 0)
	if err != nil {
		return nil, nil, err
	}

	assignment := &models.Assignment{
		BookingID:  in.BookingID,
		VehicleID:  vehicleID,
		DriverID:   driverID,
		AssignedBy: in.AssignedBy,
		Notes:      in.Notes,
	}
	change, err := s.repo.CreateAssignment(ctx, assignment, in.BookingVersion)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncAssignments(string(models.ChangeCreated))
	s.logger.Info().
		Int64("booking_id", in.BookingID).
		Int64("vehicle_id", vehicleID).
		Int64("driver_id", driverID).
		Bool("auto", in.AutoAssign).
		Msg("assignment created")

	s.publishChange(ctx, booking, assignment, change)
	return assignment, change, nil
}

// Update replaces the resources on an APPROVED or ASSIGNED booking's
// assignment. The returned change records the previous vehicle, driver and
// notes.
func (s *AssignmentService) Update(ctx context.Context, in AssignmentInput, actor *models.User) (*models.Assignment, *models.AssignmentChange, error) {
	if !actor.Role.CanAssign() {
		return nil, nil, fmt.Errorf("%w: role %s cannot assign resources", database.ErrUnauthorized, actor.Role)
	}

	booking, err := s.repo.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.Status != models.StatusApproved && booking.Status != models.StatusAssigned {
		return nil, nil, fmt.Errorf("%w: booking %d is %s, expected %s or %s", database.ErrInvalidState, booking.ID, booking.Status, models.StatusApproved, models.StatusAssigned)
	}

	vehicleID, driverID, err := s.resolvePair(ctx, booking, in, booking.ID)
	if err != nil {
		return nil, nil, err
	}

	assignment, change, err := s.repo.UpdateAssignment(ctx, in.BookingID, in.BookingVersion, vehicleID, driverID, in.Notes, in.AssignedBy)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncAssignments(string(models.ChangeUpdated))
	s.logger.Info().
		Int64("booking_id", in.BookingID).
		Int64("vehicle_id", vehicleID).
		Int64("driver_id", driverID).
		Msg("assignment updated")

	s.publishChange(ctx, booking, assignment, change)
	return assignment, change, nil
}

// History returns the assignment change rows for a booking, oldest first.
func (s *AssignmentService) History(ctx context.Context, bookingID int64) ([]models.AssignmentChange, error) {
	return s.repo.GetAssignmentHistory(ctx, bookingID)
}

func (s *AssignmentService) publishChange(ctx context.Context, booking *models.Booking, assignment *models.Assignment, change *models.AssignmentChange) {
	eventType := events.EventAssignmentCreated
	if change.Kind == models.ChangeUpdated {
		eventType = events.EventAssignmentUpdated
	}
	payload := events.AssignmentNotification{
		PayloadID:         uuid.NewString(),
		BookingID:         assignment.BookingID,
		Kind:              change.Kind,
		VehicleID:         assignment.VehicleID,
		DriverID:          assignment.DriverID,
		PreviousVehicleID: change.PreviousVehicleID,
		PreviousDriverID:  change.PreviousDriverID,
		Notes:             assignment.Notes,
		ChangedBy:         change.ChangedBy,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", assignment.BookingID).Msg("failed to publish assignment event")
	}
	if s.sync != nil {
		if err := s.sync.EnqueueScheduleSync(ctx, booking.StartTime, booking.EndTime); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", assignment.BookingID).Msg("failed to enqueue schedule sync")
		}
	}
}

// resolvePair turns the input into a concrete (vehicle, driver) pair. Manual
// mode validates the given ids; auto mode fills any missing side from ranked
// candidates. excludeBookingID is the booking's own id on updates so the
// current reservation does not conflict with itself.
func (s *AssignmentService) resolvePair(ctx context.Context, booking *models.Booking, in AssignmentInput, excludeBookingID int64) (int64, int64, error) {
	window := booking.Window()

	if !in.AutoAssign {
		if in.VehicleID == nil || in.DriverID == nil {
			return 0, 0, database.ErrIncompleteManualAssignment
		}
	}

	var vehicleID int64
	if in.VehicleID != nil {
		if err := s.validateVehicle(ctx, *in.VehicleID, booking, window, excludeBookingID); err != nil {
			return 0, 0, err
		}
		vehicleID = *in.VehicleID
	} else {
		candidates, err := s.rankVehicles(ctx, booking, excludeBookingID)
		if err != nil {
			return 0, 0, err
		}
		if len(candidates) == 0 {
			return 0, 0, fmt.Errorf("%w: no vehicle fits the request", database.ErrNoAvailableResource)
		}
		vehicleID = candidates[0].ID
	}

	var driverID int64
	if in.DriverID != nil {
		if err := s.validateDriver(ctx, *in.DriverID, window, excludeBookingID); err != nil {
			return 0, 0, err
		}
		driverID = *in.DriverID
	} else {
		candidates, err := s.rankDrivers(ctx, window, excludeBookingID)
		if err != nil {
			return 0, 0, err
		}
		if len(candidates) == 0 {
			return 0, 0, fmt.Errorf("%w: no driver fits the request", database.ErrNoAvailableResource)
		}
		driverID = candidates[0].ID
	}

	return vehicleID, driverID, nil
}

func (s *AssignmentService) validateVehicle(ctx context.Context, vehicleID int64, booking *models.Booking, window models.Window, excludeBookingID int64) error {
	vehicle, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !vehicle.Assignable() {
		return fmt.Errorf("%w: vehicle %d is %s", database.ErrResourceUnavailable, vehicleID, vehicle.Status)
	}
	if vehicle.SpareSeats(booking.PassengerCount) < 0 {
		return fmt.Errorf("%w: vehicle %d seats %d, need %d", database.ErrResourceUnavailable, vehicleID, vehicle.SeatingCapacity, booking.PassengerCount)
	}
	free, err := s.availability.resourceFree(ctx, models.ResourceVehicle, vehicleID, window, excludeBookingID)
	if err != nil {
		return err
	}
	if !free {
		return fmt.Errorf("%w: vehicle %d already reserved in window", database.ErrResourceUnavailable, vehicleID)
	}
	return nil
}

func (s *AssignmentService) validateDriver(ctx context.Context, driverID int64, window models.Window, excludeBookingID int64) error {
	driver, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return err
	}
	free, err := s.availability.driverFree(ctx, driver, window, excludeBookingID)
	if err != nil {
		return err
	}
	if !free {
		return fmt.Errorf("%w: driver %d not available in window", database.ErrResourceUnavailable, driverID)
	}
	return nil
}

// rankVehicles returns the available vehicles for the booking, best first:
// preference matches before non-matches, then fewer spare seats, then lowest
// id.
func (s *AssignmentService) rankVehicles(ctx context.Context, booking *models.Booking, excludeBookingID int64) ([]models.Vehicle, error) {
	window := booking.Window()
	active, err := s.repo.GetActiveVehicles(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Vehicle
	for _, v := range active {
		if v.SpareSeats(booking.PassengerCount) < 0 {
			continue
		}
		free, err := s.availability.resourceFree(ctx, models.ResourceVehicle, v.ID, window, excludeBookingID)
		if err != nil {
			return nil, err
		}
		if free {
			candidates = append(candidates, v)
		}
	}

	pref := booking.VehiclePreference
	passengers := booking.PassengerCount
	sort.SliceStable(candidates, func(i, j int) bool {
		mi, mj := pref.Matches(candidates[i].Type), pref.Matches(candidates[j].Type)
		if mi != mj {
			return mi
		}
		si, sj := candidates[i].SpareSeats(passengers), candidates[j].SpareSeats(passengers)
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// rankDrivers returns the available drivers for the window ordered by the
// configured ranker.
func (s *AssignmentService) rankDrivers(ctx context.Context, window models.Window, excludeBookingID int64) ([]models.Driver, error) {
	active, err := s.repo.GetActiveDrivers(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Driver
	for _, d := range active {
		driver := d
		free, err := s.availability.driverFree(ctx, &driver, window, excludeBookingID)
		if err != nil {
			return nil, err
		}
		if free {
			candidates = append(candidates, d)
		}
	}
	return s.ranker.Rank(ctx, candidates)
}

// Suggest returns up to limit ranked (vehicle, driver) pairings for a booking
// without committing anything. Pairings walk the ranked vehicle list crossed
// with the ranked driver list, best combination first.
func (s *AssignmentService) Suggest(ctx context.Context, bookingID int64, limit int) ([]models.Suggestion, error) {
	if limit <= 0 {
		limit = models.DefaultSuggestionLimit
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.rankVehicles(ctx, booking, booking.ID)
	if err != nil {
		return nil, err
	}
	drivers, err := s.rankDrivers(ctx, booking.Window(), booking.ID)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.Suggestion, 0, limit)
	for _, v := range vehicles {
		for _, d := range drivers {
			if len(suggestions) == limit {
				return suggestions, nil
			}
			spare := v.SpareSeats(booking.PassengerCount)
			matches := booking.VehiclePreference.Matches(v.Type)

			reasons := make([]string, 0, 3)
			if matches && booking.VehiclePreference != models.PreferenceAny {
				reasons = append(reasons, "matches preferred vehicle type")
			}
			if spare == 0 {
				reasons = append(reasons, "exact seat fit")
			} else {
				reasons = append(reasons, fmt.Sprintf("%d spare seats", spare))
			}
			reasons = append(reasons, "driver available for requested window")

			suggestions = append(suggestions, models.Suggestion{
				Vehicle:           v,
				Driver:            d,
				MatchesPreference: matches,
				SpareSeats:        spare,
				Reasons:           reasons,
			})
		}
	}
	return suggestions, nil
}
