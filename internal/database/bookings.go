package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

const bookingColumns = `id, requester_id, department, purpose, passenger_count,
                 start_time, end_time, pickup_point, dropoff_point,
                 vehicle_preference, status, submitted_at, created_at,
                 updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if !booking.Window().Valid() {
		return fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}
	if booking.Status == "" {
		booking.Status = models.StatusDraft
	}
	if booking.VehiclePreference == "" {
		booking.VehiclePreference = models.PreferenceAny
	}

	query := `INSERT INTO bookings (
				requester_id, department, purpose, passenger_count,
				start_time, end_time, pickup_point, dropoff_point,
				vehicle_preference, status, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.RequesterID,
		booking.Department,
		booking.Purpose,
		booking.PassengerCount,
		booking.StartTime.Unix(),
		booking.EndTime.Unix(),
		booking.PickupPoint,
		booking.DropoffPoint,
		booking.VehiclePreference,
		booking.Status,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var startUnix, endUnix int64
	var submitted sql.NullInt64
	err := row.Scan(
		&b.ID, &b.RequesterID, &b.Department, &b.Purpose, &b.PassengerCount,
		&startUnix, &endUnix, &b.PickupPoint, &b.DropoffPoint,
		&b.VehiclePreference, &b.Status, &submitted, &b.CreatedAt,
		&b.UpdatedAt, &b.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	b.StartTime = time.Unix(startUnix, 0)
	b.EndTime = time.Unix(endUnix, 0)
	if submitted.Valid {
		t := time.Unix(submitted.Int64, 0)
		b.SubmittedAt = &t
	}
	return &b, nil
}

// TransitionBooking moves a booking along a legal edge inside one transaction.
// The legality check runs against the row as read in the same transaction, so
// a raced transition fails with ErrConcurrentModification rather than writing
// an illegal edge. A self-transition returns the current snapshot untouched.
// The first entry into REQUESTED stamps submitted_at; re-entries never do.
func (db *DB) TransitionBooking(ctx context.Context, id, version int64, next models.Status) (*models.Booking, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, next)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if booking.Status == next {
		return booking, nil
	}
	if !booking.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, booking.Status, next)
	}

	now := time.Now()
	var result sql.Result
	if next == models.StatusRequested && booking.SubmittedAt == nil {
		result, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, submitted_at = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			next, now.Unix(), now, id, version)
	} else {
		result, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			next, now, id, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	booking.Status = next
	booking.Version = version + 1
	booking.UpdatedAt = now
	if next == models.StatusRequested && booking.SubmittedAt == nil {
		t := time.Unix(now.Unix(), 0)
		booking.SubmittedAt = &t
	}
	return booking, nil
}

// UpdateTripDetails rewrites the requester-editable fields. The WHERE clause
// keeps the edit gated on an editable status so a stale caller cannot modify
// an approved trip.
func (db *DB) UpdateTripDetails(ctx context.Context, id, version int64, details models.TripDetails) error {
	w := models.Window{Start: details.StartTime, End: details.EndTime}
	if !w.Valid() {
		return fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}

	query := `UPDATE bookings SET department = ?, purpose = ?, passenger_count = ?,
	                 start_time = ?, end_time = ?, pickup_point = ?, dropoff_point = ?,
	                 vehicle_preference = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		details.Department, details.Purpose, details.PassengerCount,
		details.StartTime.Unix(), details.EndTime.Unix(),
		details.PickupPoint, details.DropoffPoint, details.VehiclePreference,
		time.Now(), id, version, models.StatusDraft, models.StatusRequested)
	if err != nil {
		return fmt.Errorf("failed to update trip details: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.classifyEditFailure(ctx, id)
	}
	return nil
}

// DeleteBooking removes a booking outright, legal only while editable.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ? AND status IN (?, ?)`,
		id, models.StatusDraft, models.StatusRequested)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.classifyEditFailure(ctx, id)
	}
	return nil
}

func (db *DB) classifyEditFailure(ctx context.Context, id int64) error {
	booking, err := db.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !booking.Status.Editable() {
		return fmt.Errorf("%w: status is %s", ErrBookingNotEditable, booking.Status)
	}
	return ErrConcurrentModification
}

// GetPendingRequests returns REQUESTED bookings submitted at or before the
// cutoff, oldest first, then by id.
func (db *DB) GetPendingRequests(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND submitted_at IS NOT NULL AND submitted_at <= ?
              ORDER BY submitted_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, models.StatusRequested, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get pending requests: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// GetBookingsInWindow returns bookings whose trip window intersects [start, end).
func (db *DB) GetBookingsInWindow(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE start_time < ? AND end_time > ?
              ORDER BY start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, end.Unix(), start.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings in window: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
