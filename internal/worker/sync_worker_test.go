package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fleetbook/internal/database"
	"fleetbook/internal/models"
)

type mockSheets struct {
	mock.Mock
}

func (m *mockSheets) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockSheets) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	args := m.Called(ctx, bookingID, status)
	return args.Error(0)
}

func (m *mockSheets) UpdateScheduleSheet(ctx context.Context, start, end time.Time) error {
	args := m.Called(ctx, start, end)
	return args.Error(0)
}

func testWorker(t *testing.T, sheets SheetsClient, redisClient *redis.Client) (*SyncWorker, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSyncWorker(db, sheets, redisClient, RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond}, &logger), db
}

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:        1,
		Purpose:   "client visit",
		Status:    models.StatusRequested,
		StartTime: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEnqueuePersistsAndQueues(t *testing.T) {
	ctx := context.Background()
	w, db := testWorker(t, new(mockSheets), nil)

	require.NoError(t, w.EnqueueStatusUpdate(ctx, 1, models.StatusApproved))

	// Task is durable regardless of the queue path taken.
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TaskUpdateStatus, pending[0].TaskType)
	assert.NotEmpty(t, pending[0].IdempotencyKey)

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	assert.Equal(t, pending[0].ID, task.ID)
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	w, _ := testWorker(t, new(mockSheets), nil)

	assert.Error(t, w.EnqueueBookingUpsert(ctx, nil))
	assert.Error(t, w.EnqueueBookingUpsert(ctx, &models.Booking{}))
	assert.Error(t, w.EnqueueStatusUpdate(ctx, 0, models.StatusApproved))
}

func TestProcessTaskCompletes(t *testing.T) {
	ctx := context.Background()
	sheets := new(mockSheets)
	w, db := testWorker(t, sheets, nil)

	booking := sampleBooking()
	sheets.On("UpsertBooking", ctx, mock.AnythingOfType("*models.Booking")).Return(nil)

	require.NoError(t, w.EnqueueBookingUpsert(ctx, booking))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	w.processTask(ctx, &task)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	sheets.AssertExpectations(t)
}

func TestProcessTaskRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	sheets := new(mockSheets)
	w, db := testWorker(t, sheets, nil)

	sheets.On("UpdateBookingStatus", ctx, int64(1), "approved").Return(assert.AnError)

	require.NoError(t, w.EnqueueStatusUpdate(ctx, 1, models.StatusApproved))
	task, ok := w.tryLocalQueue()
	require.True(t, ok)

	// First failure schedules a retry in the future.
	w.processTask(ctx, &task)
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "retry not due yet")

	// Second failure exhausts MaxRetries and the task lands in failed.
	task.RetryCount = 1
	w.processTask(ctx, &task)
	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleTaskRouting(t *testing.T) {
	ctx := context.Background()
	sheets := new(mockSheets)
	w, _ := testWorker(t, sheets, nil)

	booking := sampleBooking()
	start := booking.StartTime
	end := booking.EndTime

	sheets.On("UpsertBooking", ctx, booking).Return(nil)
	sheets.On("UpdateBookingStatus", ctx, int64(1), "approved").Return(nil)
	sheets.On("UpdateScheduleSheet", ctx, start, end).Return(nil)

	require.NoError(t, w.handleTask(ctx, TaskUpsert, syncPayload{Booking: booking}))
	require.NoError(t, w.handleTask(ctx, TaskUpdateStatus, syncPayload{BookingID: 1, Status: "approved"}))
	require.NoError(t, w.handleTask(ctx, TaskSyncSchedule, syncPayload{Start: start, End: end}))

	assert.Error(t, w.handleTask(ctx, TaskUpsert, syncPayload{}), "missing booking")
	assert.Error(t, w.handleTask(ctx, TaskUpdateStatus, syncPayload{BookingID: 1}), "missing status")
	assert.Error(t, w.handleTask(ctx, TaskSyncSchedule, syncPayload{}), "missing window")
	assert.Error(t, w.handleTask(ctx, "unknown", syncPayload{}))
	sheets.AssertExpectations(t)
}

func TestRedisQueueRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	w, _ := testWorker(t, new(mockSheets), client)

	require.NoError(t, w.EnqueueStatusUpdate(ctx, 1, models.StatusApproved))

	// Redis took the task, so the local queue stays empty.
	_, ok := w.tryLocalQueue()
	assert.False(t, ok)

	task, ok := w.tryRedis(ctx)
	require.True(t, ok)
	assert.Equal(t, TaskUpdateStatus, task.TaskType)

	_, ok = w.tryRedis(ctx)
	assert.False(t, ok, "queue drained")
}
