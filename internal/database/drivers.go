package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

const driverColumns = `id, name, phone, status, schedule, created_at, updated_at`

func scanDriver(row rowScanner) (*models.Driver, error) {
	var d models.Driver
	var schedule sql.NullString
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Status, &schedule, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: driver", ErrUnknownResource)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan driver: %w", err)
	}
	if schedule.Valid && schedule.String != "" {
		ws, err := models.ParseWeeklySchedule([]byte(schedule.String))
		if err != nil {
			return nil, fmt.Errorf("driver %d: %w", d.ID, err)
		}
		d.Schedule = ws
	}
	return &d, nil
}

// UpsertDriver seeds or refreshes a driver record. The weekly schedule is
// validated before it reaches the table.
func (db *DB) UpsertDriver(ctx context.Context, driver *models.Driver) error {
	var schedule any
	if driver.Schedule != nil {
		if err := driver.Schedule.Validate(); err != nil {
			return err
		}
		raw, err := json.Marshal(driver.Schedule)
		if err != nil {
			return fmt.Errorf("failed to encode schedule: %w", err)
		}
		schedule = string(raw)
	}

	now := time.Now()
	if driver.ID != 0 {
		result, err := db.ExecContext(ctx,
			`UPDATE drivers SET name = ?, phone = ?, status = ?, schedule = ?, updated_at = ? WHERE id = ?`,
			driver.Name, driver.Phone, driver.Status, schedule, now, driver.ID)
		if err != nil {
			return fmt.Errorf("failed to update driver: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			driver.UpdatedAt = now
			return nil
		}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO drivers (name, phone, status, schedule, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		driver.Name, driver.Phone, driver.Status, schedule, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert driver: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get driver id: %w", err)
	}
	driver.ID = id
	driver.CreatedAt = now
	driver.UpdatedAt = now
	return nil
}

func (db *DB) GetDriver(ctx context.Context, id int64) (*models.Driver, error) {
	return scanDriver(db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = ?`, id))
}

// GetActiveDrivers returns assignable drivers ordered by id for stable
// ranking.
func (db *DB) GetActiveDrivers(ctx context.Context) ([]models.Driver, error) {
	return db.driversWhere(ctx, `WHERE status = ?`, models.DriverActive)
}

func (db *DB) GetAllDrivers(ctx context.Context) ([]models.Driver, error) {
	return db.driversWhere(ctx, ``)
}

func (db *DB) driversWhere(ctx context.Context, where string, args ...any) ([]models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers ` + where + ` ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query drivers: %w", err)
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, *d)
	}
	return drivers, rows.Err()
}
