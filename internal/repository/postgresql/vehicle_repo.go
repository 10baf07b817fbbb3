package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

type pgVehicleRepository struct {
	db *sql.DB
}

func NewPgVehicleRepository(db *sql.DB) repository.VehicleRepository {
	return &pgVehicleRepository{db: db}
}

func (r *pgVehicleRepository) FindByPlate(ctx context.Context, licensePlate string) (*domain.Vehicle, error) {
	vehicle := &domain.Vehicle{}
	query := `SELECT id, license_plate, brand, model, color, vehicle_type, owner_id, is_active,
	                 total_parking_time, total_fees, last_session_id, created_at, updated_at
	           FROM vehicles WHERE license_plate = $1 AND is_active = TRUE`

	err := r.db.QueryRowContext(ctx, query, licensePlate).Scan(
		&vehicle.ID, &vehicle.LicensePlate, &vehicle.Brand, &vehicle.Model, &vehicle.Color,
		&vehicle.VehicleType, &vehicle.OwnerID, &vehicle.IsActive,
		&vehicle.TotalParkingTime, &vehicle.TotalFees, &vehicle.LastSessionID,
		&vehicle.CreatedAt, &vehicle.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("VehicleRepository.FindByPlate: %w", err)
	}
	vehicle.CreatedAt = vehicle.CreatedAt.In(time.UTC)
	vehicle.UpdatedAt = vehicle.UpdatedAt.In(time.UTC)
	return vehicle, nil
}

func (r *pgVehicleRepository) UpdateUsageStats(ctx context.Context, vehicleID int, durationMinutes int64, fee float64, lastSessionID int) error {
	query := `UPDATE vehicles
	           SET total_parking_time = total_parking_time + $1,
	               total_fees = total_fees + $2,
	               last_session_id = $3,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, durationMinutes, fee, lastSessionID, vehicleID)
	if err != nil {
		return fmt.Errorf("VehicleRepository.UpdateUsageStats: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("VehicleRepository.UpdateUsageStats (rows affected): %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
