package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fleetbook/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tripStart() time.Time {
	return time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
}

func newTestBooking(requesterID int64, start, end time.Time) *models.Booking {
	return &models.Booking{
		RequesterID:       requesterID,
		Department:        "sales",
		Purpose:           "client visit",
		PassengerCount:    3,
		StartTime:         start,
		EndTime:           end,
		PickupPoint:       "HQ",
		DropoffPoint:      "client office",
		VehiclePreference: models.PreferenceAny,
		Status:            models.StatusDraft,
	}
}

func seedBooking(t *testing.T, db *DB, status models.Status) *models.Booking {
	t.Helper()
	ctx := context.Background()

	booking := newTestBooking(3, tripStart(), tripStart().Add(3*time.Hour))
	require.NoError(t, db.CreateBooking(ctx, booking))

	edges := map[models.Status][]models.Status{
		models.StatusDraft:     nil,
		models.StatusRequested: {models.StatusRequested},
		models.StatusApproved:  {models.StatusRequested, models.StatusApproved},
		models.StatusAssigned:  {models.StatusRequested, models.StatusApproved, models.StatusAssigned},
	}
	path, ok := edges[status]
	require.True(t, ok, "unsupported seed status %s", status)

	current := booking
	for _, next := range path {
		var err error
		current, err = db.TransitionBooking(ctx, current.ID, current.Version, next)
		require.NoError(t, err)
	}
	return current
}

func seedVehicle(t *testing.T, db *DB, registration string, typ models.VehicleType, seats int) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{
		Registration:    registration,
		Type:            typ,
		SeatingCapacity: seats,
		Status:          models.VehicleActive,
	}
	require.NoError(t, db.UpsertVehicle(context.Background(), v))
	return v
}

func seedDriver(t *testing.T, db *DB, name string) *models.Driver {
	t.Helper()
	d := &models.Driver{Name: name, Status: models.DriverActive}
	require.NoError(t, db.UpsertDriver(context.Background(), d))
	return d
}
