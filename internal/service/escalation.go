package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fleetbook/internal/domain"
	"fleetbook/internal/events"
	"fleetbook/internal/metrics"
	"fleetbook/internal/models"
)

// EscalationService periodically flags REQUESTED bookings that have waited
// past the threshold. Dedupe state lives in the state repository so restarts
// and multiple instances do not re-notify within the reminder interval.
type EscalationService struct {
	approvals *ApprovalService
	state     domain.StateRepository
	eventBus  domain.EventPublisher
	threshold time.Duration
	logger    *zerolog.Logger
}

func NewEscalationService(approvals *ApprovalService, state domain.StateRepository, eventBus domain.EventPublisher, threshold time.Duration, logger *zerolog.Logger) *EscalationService {
	if threshold <= 0 {
		threshold = models.DefaultPendingThresholdHours * time.Hour
	}
	return &EscalationService{
		approvals: approvals,
		state:     state,
		eventBus:  eventBus,
		threshold: threshold,
		logger:    logger,
	}
}

// Run sweeps on the given interval until the context is cancelled.
func (s *EscalationService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Dur("threshold", s.threshold).Msg("escalation loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("escalation loop stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("escalation sweep failed")
			}
		}
	}
}

// Sweep publishes one reminder per stale REQUESTED booking not reminded
// within the threshold, and returns how many reminders went out.
func (s *EscalationService) Sweep(ctx context.Context) (int, error) {
	pending, err := s.approvals.PendingRequests(ctx, s.threshold)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	sent := 0
	for _, p := range pending {
		state, err := s.state.GetReminder(ctx, p.Booking.ID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", p.Booking.ID).Msg("failed to read reminder state")
			continue
		}
		if state != nil && now.Sub(state.LastNotified) < s.threshold {
			continue
		}

		payload := events.PendingReminderPayload{
			BookingID:    p.Booking.ID,
			RequesterID:  p.Booking.RequesterID,
			HoursWaiting: p.HoursWaiting,
		}
		if p.Booking.SubmittedAt != nil {
			payload.SubmittedAt = *p.Booking.SubmittedAt
		}
		if err := s.eventBus.PublishJSON(events.EventBookingPendingTooLong, payload); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", p.Booking.ID).Msg("failed to publish reminder")
			continue
		}

		count := 1
		if state != nil {
			count = state.Count + 1
		}
		if err := s.state.SetReminder(ctx, &models.ReminderState{
			BookingID:    p.Booking.ID,
			LastNotified: now,
			Count:        count,
		}); err != nil {
			s.logger.Warn().Err(err).Int64("booking_id", p.Booking.ID).Msg("failed to store reminder state")
		}
		metrics.IncEscalationReminders()
		sent++
	}

	if sent > 0 {
		s.logger.Info().Int("reminders", sent).Msg("escalation sweep complete")
	}
	return sent, nil
}
