package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

// CalendarService materializes per-resource timelines from committed
// assignments and blocking events.
type CalendarService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCalendarService(repo domain.Repository, logger *zerolog.Logger) *CalendarService {
	return &CalendarService{repo: repo, logger: logger}
}

// BuildCalendarView returns one calendar per requested resource, events
// start-sorted, with every pairwise overlap recorded as a conflict. An empty
// resourceIDs slice means all resources of that type. Unknown ids fail the
// whole call.
func (s *CalendarService) BuildCalendarView(ctx context.Context, resource models.ResourceType, window models.Window, resourceIDs []int64) ([]models.ResourceCalendar, error) {
	if !resource.Valid() {
		return nil, fmt.Errorf("%w: resource type %q", database.ErrUnknownResource, resource)
	}
	if !window.Valid() {
		return nil, fmt.Errorf("%w: end must be after start", database.ErrInvalidWindow)
	}

	ids, err := s.resolveResourceIDs(ctx, resource, resourceIDs)
	if err != nil {
		return nil, err
	}

	// Bookings are loaded once for the window and joined in memory, so each
	// resource does not trigger a lookup per assignment.
	bookings, err := s.repo.GetBookingsInWindow(ctx, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	bookingByID := make(map[int64]models.Booking, len(bookings))
	for _, b := range bookings {
		bookingByID[b.ID] = b
	}

	calendars := make([]models.ResourceCalendar, 0, len(ids))
	for _, id := range ids {
		calendar, err := s.buildOne(ctx, resource, id, window, bookingByID)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, *calendar)
	}
	return calendars, nil
}

func (s *CalendarService) resolveResourceIDs(ctx context.Context, resource models.ResourceType, resourceIDs []int64) ([]int64, error) {
	if len(resourceIDs) > 0 {
		for _, id := range resourceIDs {
			var err error
			if resource == models.ResourceVehicle {
				_, err = s.repo.GetVehicle(ctx, id)
			} else {
				_, err = s.repo.GetDriver(ctx, id)
			}
			if err != nil {
				return nil, err
			}
		}
		return resourceIDs, nil
	}

	var ids []int64
	if resource == models.ResourceVehicle {
		vehicles, err := s.repo.GetAllVehicles(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range vehicles {
			ids = append(ids, v.ID)
		}
	} else {
		drivers, err := s.repo.GetAllDrivers(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range drivers {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

func (s *CalendarService) buildOne(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, bookingByID map[int64]models.Booking) (*models.ResourceCalendar, error) {
	assignments, err := s.repo.GetOverlappingAssignments(ctx, resource, resourceID, window, 0)
	if err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(assignments))
	for _, a := range assignments {
		booking, ok := bookingByID[a.BookingID]
		if !ok {
			loaded, err := s.repo.GetBooking(ctx, a.BookingID)
			if err != nil {
				return nil, err
			}
			booking = *loaded
		}
		events = append(events, models.CalendarEvent{
			ResourceType: resource,
			ResourceID:   resourceID,
			Kind:         models.EventAssignment,
			RefID:        booking.ID,
			Title:        booking.Purpose,
			Status:       booking.Status,
			Start:        booking.StartTime,
			End:          booking.EndTime,
		})
	}

	blocking, err := s.repo.GetBlockingEvents(ctx, resource, resourceID, window)
	if err != nil {
		return nil, err
	}
	for _, b := range blocking {
		events = append(events, models.CalendarEvent{
			ResourceType: resource,
			ResourceID:   resourceID,
			Kind:         b.Kind,
			RefID:        b.ID,
			Title:        b.Title,
			Start:        b.Start,
			End:          b.End,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].RefID < events[j].RefID
	})

	return &models.ResourceCalendar{
		ResourceType: resource,
		ResourceID:   resourceID,
		Events:       events,
		Conflicts:    detectConflicts(events),
	}, nil
}

// detectConflicts scans every event pair; volumes per resource and window are
// small enough that the quadratic pass stays cheap.
func detectConflicts(events []models.CalendarEvent) []models.CalendarConflict {
	var conflicts []models.CalendarConflict
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if !events[i].Window().Overlaps(events[j].Window()) {
				continue
			}
			overlap := events[i].Window().Intersection(events[j].Window())
			conflicts = append(conflicts, models.CalendarConflict{
				OverlapStart: overlap.Start,
				OverlapEnd:   overlap.End,
				RefIDs:       []int64{events[i].RefID, events[j].RefID},
			})
		}
	}
	return conflicts
}

// AddBlockingEvent records a manual reservation that keeps a resource out of
// scheduling without a booking.
func (s *CalendarService) AddBlockingEvent(ctx context.Context, event *models.BlockingEvent, actor *models.User) error {
	if !actor.Role.CanAssign() {
		return fmt.Errorf("%w: role %s cannot manage blocking events", database.ErrUnauthorized, actor.Role)
	}
	if event.Kind == models.EventAssignment {
		return fmt.Errorf("assignment events are derived from bookings, not created directly")
	}
	event.CreatedBy = actor.ID
	if err := s.repo.CreateBlockingEvent(ctx, event); err != nil {
		return err
	}
	s.logger.Info().
		Str("resource_type", string(event.ResourceType)).
		Int64("resource_id", event.ResourceID).
		Str("kind", string(event.Kind)).
		Msg("blocking event created")
	return nil
}

// RemoveBlockingEvent deletes a manual reservation.
func (s *CalendarService) RemoveBlockingEvent(ctx context.Context, id int64, actor *models.User) error {
	if !actor.Role.CanAssign() {
		return fmt.Errorf("%w: role %s cannot manage blocking events", database.ErrUnauthorized, actor.Role)
	}
	return s.repo.DeleteBlockingEvent(ctx, id)
}
