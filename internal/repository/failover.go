package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

// FailoverStateRepository serves from primary (redis) and falls back to
// memory when the primary errors, retrying the primary after a minute.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetReminder(ctx context.Context, bookingID int64) (*models.ReminderState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetReminder(ctx, bookingID)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		state, err := r.primary.GetReminder(ctx, bookingID)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetReminder(ctx, bookingID)
}

func (r *FailoverStateRepository) SetReminder(ctx context.Context, state *models.ReminderState) error {
	if !r.isDown.Load() {
		err := r.primary.SetReminder(ctx, state)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetReminder(ctx, state)
}

func (r *FailoverStateRepository) ClearReminder(ctx context.Context, bookingID int64) error {
	if !r.isDown.Load() {
		err := r.primary.ClearReminder(ctx, bookingID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearReminder(ctx, bookingID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
