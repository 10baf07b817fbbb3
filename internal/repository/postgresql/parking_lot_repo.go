package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

type pgParkingLotRepository struct {
	db *sql.DB
}

func NewPgParkingLotRepository(db *sql.DB) repository.ParkingLotRepository {
	return &pgParkingLotRepository{db: db}
}

// Barriers và cameras lưu dạng JSONB, marshal/unmarshal khi qua lại DB.
func marshalLotDevices(lot *domain.ParkingLot) ([]byte, []byte, error) {
	barriers := lot.Barriers
	if barriers == nil {
		barriers = []domain.BarrierInfo{}
	}
	cameras := lot.Cameras
	if cameras == nil {
		cameras = []domain.CameraInfo{}
	}
	barriersJSON, err := json.Marshal(barriers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal barriers: %w", err)
	}
	camerasJSON, err := json.Marshal(cameras)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal cameras: %w", err)
	}
	return barriersJSON, camerasJSON, nil
}

func scanLot(row interface{ Scan(dest ...interface{}) error }) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{}
	var barriersJSON, camerasJSON []byte
	err := row.Scan(
		&lot.ID, &lot.Name, &lot.Address, &lot.TotalSpaces, &lot.AvailableSpaces,
		&lot.HourlyRate, &lot.DailyRate, &lot.MonthlyRate, &lot.IsActive,
		&barriersJSON, &camerasJSON, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(barriersJSON) > 0 {
		if err := json.Unmarshal(barriersJSON, &lot.Barriers); err != nil {
			return nil, fmt.Errorf("unmarshal barriers: %w", err)
		}
	}
	if len(camerasJSON) > 0 {
		if err := json.Unmarshal(camerasJSON, &lot.Cameras); err != nil {
			return nil, fmt.Errorf("unmarshal cameras: %w", err)
		}
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

const lotColumns = `id, name, address, total_spaces, available_spaces, hourly_rate, daily_rate, monthly_rate,
	is_active, barriers, cameras, created_at, updated_at`

func (r *pgParkingLotRepository) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	barriersJSON, camerasJSON, err := marshalLotDevices(lot)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}

	query := `INSERT INTO parking_lots
	           (name, address, total_spaces, available_spaces, hourly_rate, daily_rate, monthly_rate, is_active, barriers, cameras, created_at, updated_at)
	           VALUES ($1, $2, $3, $3, $4, $5, $6, TRUE, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, available_spaces, is_active, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		lot.Name, lot.Address, lot.TotalSpaces,
		lot.HourlyRate, lot.DailyRate, lot.MonthlyRate,
		barriersJSON, camerasJSON,
	).Scan(&lot.ID, &lot.AvailableSpaces, &lot.IsActive, &lot.CreatedAt, &lot.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Create: %w", err)
	}
	lot.CreatedAt = lot.CreatedAt.In(time.UTC)
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots WHERE id = $1`

	lot, err := scanLot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.FindByID: %w", err)
	}
	return lot, nil
}

func (r *pgParkingLotRepository) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var lots []domain.ParkingLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingLotRepository.FindAll (scanning row): %w", err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.FindAll (rows error): %w", err)
	}
	return lots, nil
}

func (r *pgParkingLotRepository) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	barriersJSON, camerasJSON, err := marshalLotDevices(lot)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}

	query := `UPDATE parking_lots
	           SET name = $1, address = $2, total_spaces = $3, hourly_rate = $4, daily_rate = $5,
	               monthly_rate = $6, is_active = $7, barriers = $8, cameras = $9,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $10
	           RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		lot.Name, lot.Address, lot.TotalSpaces, lot.HourlyRate, lot.DailyRate,
		lot.MonthlyRate, lot.IsActive, barriersJSON, camerasJSON, lot.ID,
	).Scan(&lot.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingLotRepository.Update: %w", err)
	}
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

// RefreshAvailableSpaces tính lại chỗ trống từ số phiên active trong một
// câu UPDATE duy nhất, tránh sai lệch khi nhiều request vào/ra song song.
func (r *pgParkingLotRepository) RefreshAvailableSpaces(ctx context.Context, lotID int) (int, error) {
	query := `UPDATE parking_lots
	           SET available_spaces = GREATEST(total_spaces - (
	                   SELECT COUNT(*) FROM parking_sessions
	                   WHERE lot_id = parking_lots.id AND status = $1
	               ), 0),
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $2
	           RETURNING available_spaces`

	var available int
	err := r.db.QueryRowContext(ctx, query, domain.SessionActive, lotID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("ParkingLotRepository.RefreshAvailableSpaces: %w", err)
	}
	return available, nil
}

func (r *pgParkingLotRepository) UpdateBarrierStatus(ctx context.Context, lotID int, barrierID string, status domain.BarrierStatus) (*domain.ParkingLot, error) {
	lot, err := r.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range lot.Barriers {
		if lot.Barriers[i].ID == barrierID {
			lot.Barriers[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return nil, repository.ErrNotFound
	}

	barriersJSON, err := json.Marshal(lot.Barriers)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateBarrierStatus: %w", err)
	}
	query := `UPDATE parking_lots SET barriers = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING updated_at`
	if err := r.db.QueryRowContext(ctx, query, barriersJSON, lotID).Scan(&lot.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateBarrierStatus: %w", err)
	}
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}

func (r *pgParkingLotRepository) UpdateCameraStatus(ctx context.Context, lotID int, cameraID string, isActive bool, lastMaintenance *string) (*domain.ParkingLot, error) {
	lot, err := r.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range lot.Cameras {
		if lot.Cameras[i].ID == cameraID {
			lot.Cameras[i].IsActive = isActive
			if lastMaintenance != nil {
				if t, parseErr := time.Parse(time.RFC3339, *lastMaintenance); parseErr == nil {
					lot.Cameras[i].LastMaintenance = &t
				}
			}
			found = true
			break
		}
	}
	if !found {
		return nil, repository.ErrNotFound
	}

	camerasJSON, err := json.Marshal(lot.Cameras)
	if err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateCameraStatus: %w", err)
	}
	query := `UPDATE parking_lots SET cameras = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING updated_at`
	if err := r.db.QueryRowContext(ctx, query, camerasJSON, lotID).Scan(&lot.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ParkingLotRepository.UpdateCameraStatus: %w", err)
	}
	lot.UpdatedAt = lot.UpdatedAt.In(time.UTC)
	return lot, nil
}
