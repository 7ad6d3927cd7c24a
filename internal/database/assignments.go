package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

const assignmentColumns = `id, booking_id, vehicle_id, driver_id, assigned_by,
                 notes, assigned_at, created_at, updated_at, version`

func scanAssignment(row rowScanner) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(
		&a.ID, &a.BookingID, &a.VehicleID, &a.DriverID, &a.AssignedBy,
		&a.Notes, &a.AssignedAt, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return &a, nil
}

func (db *DB) GetAssignmentByBooking(ctx context.Context, bookingID int64) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE booking_id = ?`
	return scanAssignment(db.QueryRowContext(ctx, query, bookingID))
}

// resourceColumn maps a resource kind to the assignments column holding its
// id. Kept as a switch so resource input never reaches the SQL text.
func resourceColumn(resource models.ResourceType) (string, error) {
	switch resource {
	case models.ResourceVehicle:
		return "vehicle_id", nil
	case models.ResourceDriver:
		return "driver_id", nil
	default:
		return "", fmt.Errorf("%w: resource type %q", ErrUnknownResource, resource)
	}
}

const overlapCondition = `b.status IN (?, ?, ?, ?) AND b.start_time < ? AND b.end_time > ?`

// GetOverlappingAssignments returns assignments of the given resource whose
// booking is committed and whose trip window intersects [start, end) as a
// half-open interval. excludeBookingID, when nonzero, drops the booking's own
// assignment so a booking can be re-evaluated against itself.
func (db *DB) GetOverlappingAssignments(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) ([]models.Assignment, error) {
	return overlappingAssignments(ctx, db.DB, resource, resourceID, window, excludeBookingID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func overlappingAssignments(ctx context.Context, q queryer, resource models.ResourceType, resourceID int64, window models.Window, excludeBookingID int64) ([]models.Assignment, error) {
	column, err := resourceColumn(resource)
	if err != nil {
		return nil, err
	}

	query := `SELECT a.id, a.booking_id, a.vehicle_id, a.driver_id, a.assigned_by,
                     a.notes, a.assigned_at, a.created_at, a.updated_at, a.version
              FROM assignments a
              JOIN bookings b ON b.id = a.booking_id
              WHERE a.` + column + ` = ? AND ` + overlapCondition + ` AND a.booking_id != ?
              ORDER BY b.start_time ASC`

	rows, err := q.QueryContext(ctx, query,
		resourceID,
		models.StatusApproved, models.StatusAssigned, models.StatusInProgress, models.StatusCompleted,
		window.End.Unix(), window.Start.Unix(),
		excludeBookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// CreateAssignment inserts the assignment, advances the booking to ASSIGNED
// and records the audit diff, all in one transaction. The conflict checks run
// again inside the transaction so two dispatchers racing for the same vehicle
// or driver cannot both commit.
func (db *DB) CreateAssignment(ctx context.Context, assignment *models.Assignment, bookingVersion int64) (*models.AssignmentChange, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, assignment.BookingID))
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: booking is %s, want %s", ErrInvalidState, booking.Status, models.StatusApproved)
	}

	if _, err := scanAssignment(tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE booking_id = ?`, assignment.BookingID)); err == nil {
		return nil, fmt.Errorf("%w: booking %d", ErrDuplicateAssignment, assignment.BookingID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := checkResourcesFree(ctx, tx, booking, assignment.VehicleID, assignment.DriverID); err != nil {
		return nil, err
	}

	now := time.Now()
	assignment.AssignedAt = now
	result, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (booking_id, vehicle_id, driver_id, assigned_by, notes, assigned_at, created_at, updated_at, version)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		assignment.BookingID, assignment.VehicleID, assignment.DriverID,
		assignment.AssignedBy, assignment.Notes, now, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment id: %w", err)
	}
	assignment.ID = id
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	assignment.Version = 1

	if err := bumpBookingStatus(ctx, tx, booking.ID, bookingVersion, models.StatusAssigned, now); err != nil {
		return nil, err
	}

	change := &models.AssignmentChange{
		BookingID: assignment.BookingID,
		Kind:      models.ChangeCreated,
		VehicleID: assignment.VehicleID,
		DriverID:  assignment.DriverID,
		Notes:     assignment.Notes,
		ChangedBy: assignment.AssignedBy,
		ChangedAt: now,
	}
	if err := insertHistory(ctx, tx, change); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}
	return change, nil
}

// UpdateAssignment replaces the vehicle/driver pair of an existing assignment.
// Legal while the booking is APPROVED or ASSIGNED; an APPROVED booking is
// advanced to ASSIGNED in the same transaction. Returns the updated assignment
// and the previous-vs-new diff.
func (db *DB) UpdateAssignment(ctx context.Context, bookingID, bookingVersion int64, vehicleID, driverID int64, notes string, changedBy int64) (*models.Assignment, *models.AssignmentChange, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID))
	if err != nil {
		return nil, nil, err
	}
	if booking.Status != models.StatusApproved && booking.Status != models.StatusAssigned {
		return nil, nil, fmt.Errorf("%w: booking is %s, want %s or %s",
			ErrInvalidState, booking.Status, models.StatusApproved, models.StatusAssigned)
	}

	existing, err := scanAssignment(tx.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE booking_id = ?`, bookingID))
	if err != nil {
		return nil, nil, err
	}

	if err := checkResourcesFree(ctx, tx, booking, vehicleID, driverID); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE assignments SET vehicle_id = ?, driver_id = ?, notes = ?, assigned_by = ?, assigned_at = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		vehicleID, driverID, notes, changedBy, now, now, existing.ID, existing.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, nil, ErrConcurrentModification
	}

	if booking.Status == models.StatusApproved {
		if err := bumpBookingStatus(ctx, tx, booking.ID, bookingVersion, models.StatusAssigned, now); err != nil {
			return nil, nil, err
		}
	}

	prevVehicle := existing.VehicleID
	prevDriver := existing.DriverID
	prevNotes := existing.Notes
	change := &models.AssignmentChange{
		BookingID:         bookingID,
		Kind:              models.ChangeUpdated,
		PreviousVehicleID: &prevVehicle,
		PreviousDriverID:  &prevDriver,
		PreviousNotes:     &prevNotes,
		VehicleID:         vehicleID,
		DriverID:          driverID,
		Notes:             notes,
		ChangedBy:         changedBy,
		ChangedAt:         now,
	}
	if err := insertHistory(ctx, tx, change); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit assignment update: %w", err)
	}

	updated := *existing
	updated.VehicleID = vehicleID
	updated.DriverID = driverID
	updated.Notes = notes
	updated.AssignedBy = changedBy
	updated.AssignedAt = now
	updated.UpdatedAt = now
	updated.Version = existing.Version + 1
	return &updated, change, nil
}

func checkResourcesFree(ctx context.Context, tx *sql.Tx, booking *models.Booking, vehicleID, driverID int64) error {
	window := booking.Window()
	vehicleConflicts, err := overlappingAssignments(ctx, tx, models.ResourceVehicle, vehicleID, window, booking.ID)
	if err != nil {
		return err
	}
	if len(vehicleConflicts) > 0 {
		return fmt.Errorf("%w: vehicle %d already booked in window", ErrResourceUnavailable, vehicleID)
	}
	driverConflicts, err := overlappingAssignments(ctx, tx, models.ResourceDriver, driverID, window, booking.ID)
	if err != nil {
		return err
	}
	if len(driverConflicts) > 0 {
		return fmt.Errorf("%w: driver %d already booked in window", ErrResourceUnavailable, driverID)
	}
	return nil
}

func bumpBookingStatus(ctx context.Context, tx *sql.Tx, bookingID, version int64, next models.Status, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		next, now, bookingID, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, change *models.AssignmentChange) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO assignment_history (booking_id, change_kind, previous_vehicle_id, previous_driver_id, previous_notes,
                 vehicle_id, driver_id, notes, changed_by, changed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.BookingID, change.Kind,
		change.PreviousVehicleID, change.PreviousDriverID, change.PreviousNotes,
		change.VehicleID, change.DriverID, change.Notes, change.ChangedBy, change.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assignment history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history id: %w", err)
	}
	change.ID = id
	return nil
}

// GetAssignmentHistory returns all recorded diffs for a booking, oldest first.
func (db *DB) GetAssignmentHistory(ctx context.Context, bookingID int64) ([]models.AssignmentChange, error) {
	query := `SELECT id, booking_id, change_kind, previous_vehicle_id, previous_driver_id, previous_notes,
                     vehicle_id, driver_id, notes, changed_by, changed_at
              FROM assignment_history WHERE booking_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment history: %w", err)
	}
	defer rows.Close()

	var changes []models.AssignmentChange
	for rows.Next() {
		var c models.AssignmentChange
		err := rows.Scan(
			&c.ID, &c.BookingID, &c.Kind, &c.PreviousVehicleID, &c.PreviousDriverID, &c.PreviousNotes,
			&c.VehicleID, &c.DriverID, &c.Notes, &c.ChangedBy, &c.ChangedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment history: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// GetLastAssignmentTimes returns each driver's most recent assigned_at, used
// by the workload-balancing ranker. The join keeps the typed assigned_at
// column in the result; an aggregate over it would come back as raw text.
func (db *DB) GetLastAssignmentTimes(ctx context.Context) (map[int64]time.Time, error) {
	query := `SELECT a.driver_id, a.assigned_at
              FROM assignments a
              JOIN (SELECT driver_id, MAX(assigned_at) AS last_at FROM assignments GROUP BY driver_id) m
                ON m.driver_id = a.driver_id AND m.last_at = a.assigned_at`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get last assignment times: %w", err)
	}
	defer rows.Close()

	times := make(map[int64]time.Time)
	for rows.Next() {
		var driverID int64
		var last time.Time
		if err := rows.Scan(&driverID, &last); err != nil {
			return nil, fmt.Errorf("failed to scan last assignment time: %w", err)
		}
		times[driverID] = last
	}
	return times, rows.Err()
}
