package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/events"
	"fleetbook/internal/metrics"
	"fleetbook/internal/models"
)

// BookingService owns the booking lifecycle: draft creation, trip edits,
// submission and every later status transition. All status changes go through
// the repository's optimistic-locking transaction.
type BookingService struct {
	repo           domain.Repository
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		syncWorker:     syncWorker,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

func (s *BookingService) validateTrip(details models.TripDetails) error {
	w := models.Window{Start: details.StartTime, End: details.EndTime}
	if !w.Valid() {
		return fmt.Errorf("%w: end must be after start", database.ErrInvalidWindow)
	}
	now := time.Now()
	if details.StartTime.Before(now) {
		return database.ErrPastWindow
	}
	if details.StartTime.After(now.AddDate(0, 0, s.maxBookingDays)) {
		return fmt.Errorf("%w: limit is %d days", database.ErrWindowTooFar, s.maxBookingDays)
	}
	if details.PassengerCount < 1 {
		return fmt.Errorf("%w: passenger count must be at least 1", database.ErrInvalidWindow)
	}
	if !details.VehiclePreference.Valid() {
		return fmt.Errorf("%w: unknown vehicle preference %q", database.ErrInvalidWindow, details.VehiclePreference)
	}
	return nil
}

// CreateDraft validates trip details and stores a new DRAFT booking.
func (s *BookingService) CreateDraft(ctx context.Context, booking *models.Booking) error {
	details := models.TripDetails{
		Department:        booking.Department,
		Purpose:           booking.Purpose,
		PassengerCount:    booking.PassengerCount,
		StartTime:         booking.StartTime,
		EndTime:           booking.EndTime,
		PickupPoint:       booking.PickupPoint,
		DropoffPoint:      booking.DropoffPoint,
		VehiclePreference: booking.VehiclePreference,
	}
	if err := s.validateTrip(details); err != nil {
		return err
	}

	booking.Status = models.StatusDraft
	booking.SubmittedAt = nil
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}

	metrics.IncBookingsCreated()
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("requester_id", booking.RequesterID).
		Time("start", booking.StartTime).
		Time("end", booking.EndTime).
		Msg("booking draft created")
	return nil
}

// Submit moves a DRAFT booking to REQUESTED, stamping submitted_at on the
// first submission only.
func (s *BookingService) Submit(ctx context.Context, id, version, submittedBy int64) (*models.Booking, error) {
	return s.Transition(ctx, id, version, models.StatusRequested, submittedBy)
}

// Transition applies one status edge with optimistic locking. changedBy is
// recorded in the published event; a self-edge returns the current row
// untouched.
func (s *BookingService) Transition(ctx context.Context, id, version int64, next models.Status, changedBy int64) (*models.Booking, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", database.ErrIllegalTransition, next)
	}

	updated, err := s.repo.TransitionBooking(ctx, id, version, next)
	if err != nil {
		return nil, err
	}
	if updated.Status == next && updated.Version == version {
		// Self-edge no-op: nothing changed, nothing to announce.
		return updated, nil
	}

	metrics.IncBookingTransitions(string(next))
	s.logger.Info().
		Int64("booking_id", updated.ID).
		Str("status", string(updated.Status)).
		Int64("changed_by", changedBy).
		Msg("booking status changed")

	payload := events.BookingEventPayload{
		BookingID:   updated.ID,
		RequesterID: updated.RequesterID,
		Purpose:     updated.Purpose,
		Status:      updated.Status,
		StartTime:   updated.StartTime,
		EndTime:     updated.EndTime,
		ChangedBy:   changedBy,
	}
	eventType := events.EventBookingStatusChanged
	switch next {
	case models.StatusRequested:
		eventType = events.EventBookingSubmitted
	case models.StatusCancelled:
		eventType = events.EventBookingCancelled
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", updated.ID).Msg("failed to publish booking event")
	}

	if s.syncWorker != nil {
		if next == models.StatusRequested {
			if err := s.syncWorker.EnqueueBookingUpsert(ctx, updated); err != nil {
				s.logger.Warn().Err(err).Int64("booking_id", updated.ID).Msg("failed to enqueue booking sync")
			}
		} else {
			if err := s.syncWorker.EnqueueStatusUpdate(ctx, updated.ID, updated.Status); err != nil {
				s.logger.Warn().Err(err).Int64("booking_id", updated.ID).Msg("failed to enqueue status sync")
			}
		}
	}

	return updated, nil
}

// UpdateTrip replaces the editable trip fields while the booking is still
// DRAFT or REQUESTED.
func (s *BookingService) UpdateTrip(ctx context.Context, id, version int64, details models.TripDetails) (*models.Booking, error) {
	if err := s.validateTrip(details); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTripDetails(ctx, id, version, details); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", id).Msg("booking trip details updated")
	if s.syncWorker != nil && updated.Status == models.StatusRequested {
		if err := s.syncWorker.EnqueueBookingUpsert(ctx, updated); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", id).Msg("failed to enqueue booking sync")
		}
	}
	return updated, nil
}

// Delete removes a booking outright. Only DRAFT and REQUESTED bookings can be
// deleted; later statuses must be cancelled instead.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("booking_id", id).Msg("booking deleted")
	return nil
}

// GetBooking returns one booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}
