package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fleetbook/internal/database"
	"fleetbook/internal/domain"
	"fleetbook/internal/events"
	"fleetbook/internal/metrics"
	"fleetbook/internal/models"
)

// ApprovalService records managerial decisions on REQUESTED bookings and
// produces the notification payloads consumed downstream.
type ApprovalService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	sync     domain.SyncWorker
	logger   *zerolog.Logger
}

func NewApprovalService(repo domain.Repository, eventBus domain.EventPublisher, sync domain.SyncWorker, logger *zerolog.Logger) *ApprovalService {
	return &ApprovalService{repo: repo, eventBus: eventBus, sync: sync, logger: logger}
}

// Decide records one immutable approval or rejection. The approver must hold
// an approving role and must not be the requester. The booking moves to
// APPROVED or REJECTED in the same transaction that stores the decision row.
func (s *ApprovalService) Decide(ctx context.Context, bookingID, bookingVersion int64, approver *models.User, decision models.Decision, reason string) (*models.Approval, *events.ApprovalNotification, error) {
	if !decision.Valid() {
		return nil, nil, fmt.Errorf("invalid decision %q", decision)
	}
	if !approver.Role.CanApprove() {
		return nil, nil, fmt.Errorf("%w: role %s cannot approve bookings", database.ErrUnauthorized, approver.Role)
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.RequesterID == approver.ID {
		return nil, nil, database.ErrSelfApprovalForbidden
	}
	if booking.Status != models.StatusRequested {
		return nil, nil, fmt.Errorf("%w: booking %d is %s, expected %s", database.ErrInvalidState, bookingID, booking.Status, models.StatusRequested)
	}

	approval := &models.Approval{
		BookingID:  bookingID,
		ApproverID: approver.ID,
		Decision:   decision,
		Reason:     models.NormalizeReason(reason),
	}
	updated, err := s.repo.RecordApproval(ctx, approval, bookingVersion)
	if err != nil {
		return nil, nil, err
	}

	metrics.IncApprovalDecisions(string(decision))
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("approver_id", approver.ID).
		Str("decision", string(decision)).
		Msg("approval recorded")

	notification := &events.ApprovalNotification{
		PayloadID:  uuid.NewString(),
		BookingID:  bookingID,
		Verb:       string(decision),
		Reason:     approval.Reason,
		ApproverID: approver.ID,
		DecidedAt:  approval.DecidedAt,
	}
	eventType := events.EventBookingApproved
	if decision == models.DecisionRejected {
		eventType = events.EventBookingRejected
	}
	if err := s.eventBus.PublishJSON(eventType, notification); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("failed to publish approval event")
	}

	if s.sync != nil {
		if err := s.sync.EnqueueStatusUpdate(ctx, bookingID, updated.Status); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("failed to enqueue status sync")
		}
	}

	return approval, notification, nil
}

// PendingRequests lists REQUESTED bookings submitted before now minus
// olderThan, oldest first, each annotated with whole hours waited.
func (s *ApprovalService) PendingRequests(ctx context.Context, olderThan time.Duration) ([]models.PendingRequest, error) {
	now := time.Now()
	bookings, err := s.repo.GetPendingRequests(ctx, now.Add(-olderThan))
	if err != nil {
		return nil, err
	}

	pending := make([]models.PendingRequest, 0, len(bookings))
	for _, b := range bookings {
		var hours int64
		if b.SubmittedAt != nil {
			hours = int64(now.Sub(*b.SubmittedAt) / time.Hour)
		}
		pending = append(pending, models.PendingRequest{Booking: b, HoursWaiting: hours})
	}
	return pending, nil
}

// History returns the decision rows recorded for a booking, oldest first.
func (s *ApprovalService) History(ctx context.Context, bookingID int64) ([]models.Approval, error) {
	return s.repo.GetApprovalsByBooking(ctx, bookingID)
}
