package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

// AvailabilityService answers whether a resource is free for a trip window.
// Overlap is half-open: a booking ending exactly when another starts does not
// conflict.
type AvailabilityService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{repo: repo, logger: logger}
}

// Conflicts returns the assignments of committed bookings whose windows
// intersect the given window for one resource. excludeBookingID skips that
// booking's own assignment, so reassignment checks do not collide with
// themselves.
func (s *AvailabilityService) Conflicts(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) ([]models.Assignment, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("%w: end must be after start", database.ErrInvalidWindow)
	}
	return s.repo.GetOverlappingAssignments(ctx, resource, resourceID, window, excludeBookingID)
}

// IsVehicleAvailable reports whether the vehicle has no conflicting committed
// booking and no blocking event in the window. The vehicle must exist.
func (s *AvailabilityService) IsVehicleAvailable(ctx context.Context, vehicleID int64, window models.Window, excludeBookingID int64) (bool, error) {
	if _, err := s.repo.GetVehicle(ctx, vehicleID); err != nil {
		return false, err
	}
	return s.resourceFree(ctx, models.ResourceVehicle, vehicleID, window, excludeBookingID)
}

// IsDriverAvailable reports whether the driver is ACTIVE, the window lies
// inside their weekly working span, and no conflicting committed booking or
// blocking event exists. A driver without a schedule is unrestricted by it.
func (s *AvailabilityService) IsDriverAvailable(ctx context.Context, driverID int64, window models.Window, excludeBookingID int64) (bool, error) {
	driver, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return false, err
	}
	return s.driverFree(ctx, driver, window, excludeBookingID)
}

// driverFree checks an already-loaded driver, sparing callers that iterate
// candidate lists a second lookup per driver.
func (s *AvailabilityService) driverFree(ctx context.Context, driver *models.Driver, window models.Window, excludeBookingID int64) (bool, error) {
	if !driver.Assignable() {
		return false, nil
	}
	if driver.Schedule != nil && !driver.Schedule.Covers(window) {
		return false, nil
	}
	return s.resourceFree(ctx, models.ResourceDriver, driver.ID, window, excludeBookingID)
}

func (s *AvailabilityService) resourceFree(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) (bool, error) {
	if !window.Valid() {
		return false, fmt.Errorf("%w: end must be after start", database.ErrInvalidWindow)
	}

	conflicts, err := s.repo.GetOverlappingAssignments(ctx, resource, resourceID, window, excludeBookingID)
	if err != nil {
		return false, err
	}
	if len(conflicts) > 0 {
		return false, nil
	}

	blocked, err := s.repo.GetBlockingEvents(ctx, resource, resourceID, window)
	if err != nil {
		return false, err
	}
	return len(blocked) == 0, nil
}
