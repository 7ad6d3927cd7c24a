package database

import (
	"context"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

func (db *DB) CreateBlockingEvent(ctx context.Context, event *models.BlockingEvent) error {
	if !event.ResourceType.Valid() {
		return fmt.Errorf("%w: resource type %q", ErrUnknownResource, event.ResourceType)
	}
	w := models.Window{Start: event.Start, End: event.End}
	if !w.Valid() {
		return fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}

	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO calendar_events (resource_type, resource_id, kind, title, start_time, end_time, created_by, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ResourceType, event.ResourceID, event.Kind, event.Title,
		event.Start.Unix(), event.End.Unix(), event.CreatedBy, now)
	if err != nil {
		return fmt.Errorf("failed to create blocking event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get blocking event id: %w", err)
	}
	event.ID = id
	event.CreatedAt = now
	return nil
}

func (db *DB) DeleteBlockingEvent(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocking event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBlockingEvents returns blocking events for one resource intersecting the
// window, start-sorted.
func (db *DB) GetBlockingEvents(ctx context.Context, resource models.ResourceType, resourceID int64, window models.Window) ([]models.BlockingEvent, error) {
	if !resource.Valid() {
		return nil, fmt.Errorf("%w: resource type %q", ErrUnknownResource, resource)
	}

	query := `SELECT id, resource_type, resource_id, kind, title, start_time, end_time, created_by, created_at
              FROM calendar_events
              WHERE resource_type = ? AND resource_id = ? AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, resource, resourceID, window.End.Unix(), window.Start.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query blocking events: %w", err)
	}
	defer rows.Close()

	var events []models.BlockingEvent
	for rows.Next() {
		var e models.BlockingEvent
		var startUnix, endUnix int64
		if err := rows.Scan(&e.ID, &e.ResourceType, &e.ResourceID, &e.Kind, &e.Title, &startUnix, &endUnix, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blocking event: %w", err)
		}
		e.Start = time.Unix(startUnix, 0)
		e.End = time.Unix(endUnix, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}
