package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetbook/internal/models"
)

const vehicleColumns = `id, registration, type, seating_capacity, status, created_at, updated_at`

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	err := row.Scan(&v.ID, &v.Registration, &v.Type, &v.SeatingCapacity, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vehicle", ErrUnknownResource)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicle: %w", err)
	}
	return &v, nil
}

// UpsertVehicle seeds or refreshes a vehicle record keyed by registration.
func (db *DB) UpsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `INSERT INTO vehicles (registration, type, seating_capacity, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(registration) DO UPDATE SET
                type = excluded.type,
                seating_capacity = excluded.seating_capacity,
                status = excluded.status,
                updated_at = excluded.updated_at`
	now := time.Now()
	if _, err := db.ExecContext(ctx, query,
		vehicle.Registration, vehicle.Type, vehicle.SeatingCapacity, vehicle.Status, now, now); err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}

	stored, err := scanVehicle(db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE registration = ?`, vehicle.Registration))
	if err != nil {
		return err
	}
	*vehicle = *stored
	return nil
}

func (db *DB) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	return scanVehicle(db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id))
}

// GetActiveVehicles returns assignable vehicles ordered by id for stable
// ranking.
func (db *DB) GetActiveVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return db.vehiclesWhere(ctx, `WHERE status = ?`, models.VehicleActive)
}

func (db *DB) GetAllVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return db.vehiclesWhere(ctx, ``)
}

func (db *DB) vehiclesWhere(ctx context.Context, where string, args ...any) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ` + where + ` ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}
