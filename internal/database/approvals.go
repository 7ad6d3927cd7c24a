package database

import (
	"context"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

// RecordApproval persists the immutable decision row and drives the booking
// to APPROVED or REJECTED in the same transaction. The REQUESTED precondition
// is re-checked against the row as read here, so a decision raced by another
// manager fails instead of double-writing.
func (db *DB) RecordApproval(ctx context.Context, approval *models.Approval, bookingVersion int64) (*models.Booking, error) {
	next := models.StatusApproved
	if approval.Decision == models.DecisionRejected {
		next = models.StatusRejected
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	booking, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, approval.BookingID))
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusRequested {
		return nil, fmt.Errorf("%w: booking is %s, want %s", ErrInvalidState, booking.Status, models.StatusRequested)
	}

	now := time.Now()
	approval.DecidedAt = now
	result, err := tx.ExecContext(ctx,
		`INSERT INTO approvals (booking_id, approver_id, decision, reason, decided_at) VALUES (?, ?, ?, ?, ?)`,
		approval.BookingID, approval.ApproverID, approval.Decision, approval.Reason, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert approval: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get approval id: %w", err)
	}
	approval.ID = id

	if err := bumpBookingStatus(ctx, tx, booking.ID, bookingVersion, next, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	booking.Status = next
	booking.Version = bookingVersion + 1
	booking.UpdatedAt = now
	return booking, nil
}

// GetApprovalsByBooking returns the full decision history, oldest first.
func (db *DB) GetApprovalsByBooking(ctx context.Context, bookingID int64) ([]models.Approval, error) {
	query := `SELECT id, booking_id, approver_id, decision, reason, decided_at
              FROM approvals WHERE booking_id = ? ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	defer rows.Close()

	var approvals []models.Approval
	for rows.Next() {
		var a models.Approval
		if err := rows.Scan(&a.ID, &a.BookingID, &a.ApproverID, &a.Decision, &a.Reason, &a.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
