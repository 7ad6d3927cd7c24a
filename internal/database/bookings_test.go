package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetbook/internal/models"
)

func TestCreateAndGetBooking(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	booking := newTestBooking(3, tripStart(), tripStart().Add(3*time.Hour))
	require.NoError(t, db.CreateBooking(ctx, booking))
	assert.NotZero(t, booking.ID)
	assert.Equal(t, int64(1), booking.Version)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Equal(t, "client visit", got.Purpose)
	assert.Equal(t, tripStart().Unix(), got.StartTime.Unix())
	assert.Nil(t, got.SubmittedAt)
}

func TestCreateBookingInvalidWindow(t *testing.T) {
	db := testDB(t)

	booking := newTestBooking(3, tripStart(), tripStart().Add(-time.Hour))
	err := db.CreateBooking(context.Background(), booking)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestGetBookingNotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetBooking(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("SubmitStampsSubmittedAt", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		updated, err := db.TransitionBooking(ctx, booking.ID, booking.Version, models.StatusRequested)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRequested, updated.Status)
		assert.Equal(t, booking.Version+1, updated.Version)
		require.NotNil(t, updated.SubmittedAt)

		stored, err := db.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.SubmittedAt)
		assert.Equal(t, updated.SubmittedAt.Unix(), stored.SubmittedAt.Unix())
	})

	t.Run("SelfEdgeLeavesRowUntouched", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusRequested)

		same, err := db.TransitionBooking(ctx, booking.ID, booking.Version, models.StatusRequested)
		require.NoError(t, err)
		assert.Equal(t, booking.Version, same.Version)
		assert.Equal(t, booking.SubmittedAt.Unix(), same.SubmittedAt.Unix())
	})

	t.Run("IllegalEdge", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		_, err := db.TransitionBooking(ctx, booking.ID, booking.Version, models.StatusApproved)
		assert.ErrorIs(t, err, ErrIllegalTransition)

		stored, err := db.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, stored.Status)
	})

	t.Run("TerminalHasNoExit", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusRequested)

		rejectedVia := &models.Approval{BookingID: booking.ID, ApproverID: 7, Decision: models.DecisionRejected}
		_, err := db.RecordApproval(ctx, rejectedVia, booking.Version)
		require.NoError(t, err)

		_, err = db.TransitionBooking(ctx, booking.ID, booking.Version+1, models.StatusCancelled)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		_, err := db.TransitionBooking(ctx, booking.ID, booking.Version+5, models.StatusRequested)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		_, err := db.TransitionBooking(ctx, booking.ID, booking.Version, models.Status("parked"))
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestUpdateTripDetails(t *testing.T) {
	ctx := context.Background()

	details := models.TripDetails{
		Department:        "ops",
		Purpose:           "warehouse run",
		PassengerCount:    2,
		StartTime:         tripStart().Add(24 * time.Hour),
		EndTime:           tripStart().Add(26 * time.Hour),
		PickupPoint:       "depot",
		DropoffPoint:      "warehouse",
		VehiclePreference: models.PreferenceVan,
	}

	t.Run("EditableStatuses", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusRequested)

		require.NoError(t, db.UpdateTripDetails(ctx, booking.ID, booking.Version, details))

		stored, err := db.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, "warehouse run", stored.Purpose)
		assert.Equal(t, models.PreferenceVan, stored.VehiclePreference)
		assert.Equal(t, booking.Version+1, stored.Version)
		// Edits never touch the submission stamp.
		require.NotNil(t, stored.SubmittedAt)
	})

	t.Run("LockedAfterApproval", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusApproved)

		err := db.UpdateTripDetails(ctx, booking.ID, booking.Version, details)
		assert.ErrorIs(t, err, ErrBookingNotEditable)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		err := db.UpdateTripDetails(ctx, booking.ID, booking.Version+3, details)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("InvalidWindow", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		bad := details
		bad.EndTime = bad.StartTime
		err := db.UpdateTripDetails(ctx, booking.ID, booking.Version, bad)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("DraftDeletable", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusDraft)

		require.NoError(t, db.DeleteBooking(ctx, booking.ID))
		_, err := db.GetBooking(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ApprovedNotDeletable", func(t *testing.T) {
		db := testDB(t)
		booking := seedBooking(t, db, models.StatusApproved)

		err := db.DeleteBooking(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrBookingNotEditable)
	})

	t.Run("Missing", func(t *testing.T) {
		db := testDB(t)
		assert.ErrorIs(t, db.DeleteBooking(ctx, 42), ErrNotFound)
	})
}

func TestGetPendingRequests(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := seedBooking(t, db, models.StatusRequested)
	second := seedBooking(t, db, models.StatusRequested)
	seedBooking(t, db, models.StatusDraft)
	seedBooking(t, db, models.StatusApproved)

	pending, err := db.GetPendingRequests(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	none, err := db.GetPendingRequests(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetBookingsInWindow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	booking := newTestBooking(3, tripStart(), tripStart().Add(3*time.Hour))
	require.NoError(t, db.CreateBooking(ctx, booking))

	t.Run("Intersecting", func(t *testing.T) {
		got, err := db.GetBookingsInWindow(ctx, tripStart().Add(2*time.Hour), tripStart().Add(5*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, booking.ID, got[0].ID)
	})

	t.Run("TouchingBoundaryExcluded", func(t *testing.T) {
		got, err := db.GetBookingsInWindow(ctx, tripStart().Add(3*time.Hour), tripStart().Add(5*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
