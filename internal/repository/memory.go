package repository

import (
	"context"
	"sync"
	"time"

	"fleetbook/internal/models"
)

type MemoryStateRepository struct {
	reminders  sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		ttl: ttl,
	}
}

type reminderEntry struct {
	state     *models.ReminderState
	expiresAt time.Time
}

func (r *MemoryStateRepository) GetReminder(ctx context.Context, bookingID int64) (*models.ReminderState, error) {
	val, ok := r.reminders.Load(bookingID)
	if !ok {
		return nil, nil
	}
	entry := val.(*reminderEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.reminders.Delete(bookingID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryStateRepository) SetReminder(ctx context.Context, state *models.ReminderState) error {
	r.reminders.Store(state.BookingID, &reminderEntry{
		state:     state,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryStateRepository) ClearReminder(ctx context.Context, bookingID int64) error {
	r.reminders.Delete(bookingID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
