package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

type pgParkingSessionRepository struct {
	db *sql.DB
}

func NewPgParkingSessionRepository(db *sql.DB) repository.ParkingSessionRepository {
	return &pgParkingSessionRepository{db: db}
}

const sessionColumns = `id, session_id, lot_id, vehicle_id, user_id, detected_license_plate, confirmed_license_plate,
	entry_time, exit_time, expected_exit_time, duration_minutes,
	fee, hourly_rate, daily_rate, late_fee, discount_amount, discount_reason, total_amount,
	payment_status, payment_method, barrier_entry, barrier_exit, entry_image, exit_image,
	status, is_registered_vehicle, temp_ticket_number, rfid_card_id, detection_confidence,
	created_at, updated_at`

func scanSession(row interface{ Scan(dest ...interface{}) error }) (*domain.ParkingSession, error) {
	session := &domain.ParkingSession{}
	err := row.Scan(
		&session.ID, &session.SessionID, &session.LotID, &session.VehicleID, &session.UserID,
		&session.DetectedLicensePlate, &session.ConfirmedLicensePlate,
		&session.EntryTime, &session.ExitTime, &session.ExpectedExitTime, &session.DurationMinutes,
		&session.Fee, &session.HourlyRate, &session.DailyRate, &session.LateFee,
		&session.DiscountAmount, &session.DiscountReason, &session.TotalAmount,
		&session.PaymentStatus, &session.PaymentMethod, &session.BarrierEntry, &session.BarrierExit,
		&session.EntryImage, &session.ExitImage,
		&session.Status, &session.IsRegisteredVehicle, &session.TempTicketNumber, &session.RFIDCardID,
		&session.DetectionConfidence, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.EntryTime = session.EntryTime.In(time.UTC)
	if session.ExitTime.Valid {
		session.ExitTime.Time = session.ExitTime.Time.In(time.UTC)
	}
	if session.ExpectedExitTime.Valid {
		session.ExpectedExitTime.Time = session.ExpectedExitTime.Time.In(time.UTC)
	}
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgParkingSessionRepository) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	query := `INSERT INTO parking_sessions
	           (session_id, lot_id, vehicle_id, user_id, detected_license_plate, entry_time, expected_exit_time,
	            payment_status, barrier_entry, entry_image, status, is_registered_vehicle,
	            temp_ticket_number, rfid_card_id, detection_confidence, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		session.SessionID, session.LotID, session.VehicleID, session.UserID,
		session.DetectedLicensePlate, session.EntryTime, session.ExpectedExitTime,
		session.PaymentStatus, session.BarrierEntry, session.EntryImage,
		session.Status, session.IsRegisteredVehicle,
		session.TempTicketNumber, session.RFIDCardID, session.DetectionConfidence,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		// Unique index riêng trên (detected_license_plate) WHERE status = 'active'
		// bảo đảm một xe chỉ có một phiên active, kể cả khi request trùng nhau.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, repository.ErrDuplicateActiveSession
		}
		return nil, fmt.Errorf("ParkingSessionRepository.Create: %w", err)
	}
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgParkingSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE session_id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ParkingSessionRepository.FindBySessionID: %w", err)
	}
	return session, nil
}

func (r *pgParkingSessionRepository) FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + `
	           FROM parking_sessions
	           WHERE detected_license_plate = $1 AND status = $2
	           ORDER BY entry_time DESC LIMIT 1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, licensePlate, domain.SessionActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoActiveSession
		}
		return nil, fmt.Errorf("ParkingSessionRepository.FindActiveByPlate: %w", err)
	}
	return session, nil
}

func (r *pgParkingSessionRepository) Close(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	// Chỉ đóng phiên còn active. Hai request exit chạy song song thì chỉ
	// một UPDATE ăn, request còn lại rơi vào nhánh ErrSessionAlreadyClosed.
	query := `UPDATE parking_sessions
	           SET exit_time = $1, duration_minutes = $2,
	               fee = $3, hourly_rate = $4, daily_rate = $5, late_fee = $6,
	               discount_amount = $7, discount_reason = $8, total_amount = $9,
	               payment_status = $10, payment_method = $11,
	               barrier_exit = $12, exit_image = $13, status = $14,
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = $15 AND status = $16
	           RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		session.ExitTime, session.DurationMinutes,
		session.Fee, session.HourlyRate, session.DailyRate, session.LateFee,
		session.DiscountAmount, session.DiscountReason, session.TotalAmount,
		session.PaymentStatus, session.PaymentMethod,
		session.BarrierExit, session.ExitImage, domain.SessionCompleted,
		session.ID, domain.SessionActive,
	).Scan(&session.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Phân biệt phiên đã đóng với phiên không tồn tại.
			query = `SELECT status FROM parking_sessions WHERE id = $1`
			var status domain.ParkingSessionStatus
			if scanErr := r.db.QueryRowContext(ctx, query, session.ID).Scan(&status); scanErr != nil {
				if errors.Is(scanErr, sql.ErrNoRows) {
					return nil, repository.ErrNotFound
				}
				return nil, fmt.Errorf("ParkingSessionRepository.Close (recheck): %w", scanErr)
			}
			return nil, repository.ErrSessionAlreadyClosed
		}
		return nil, fmt.Errorf("ParkingSessionRepository.Close: %w", err)
	}
	session.Status = domain.SessionCompleted
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgParkingSessionRepository) ListActive(ctx context.Context, lotID int) ([]domain.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + `
	           FROM parking_sessions
	           WHERE status = $1`
	args := []interface{}{domain.SessionActive}
	if lotID > 0 {
		query += ` AND lot_id = $2`
		args = append(args, lotID)
	}
	query += ` ORDER BY entry_time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ParkingSessionRepository.ListActive: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ParkingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("ParkingSessionRepository.ListActive (scanning row): %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ParkingSessionRepository.ListActive (rows error): %w", err)
	}
	return sessions, nil
}

func (r *pgParkingSessionRepository) Find(ctx context.Context, filter domain.ParkingSessionFilterDTO) ([]domain.ParkingSession, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if filter.LotID != nil {
		conditions = append(conditions, fmt.Sprintf("lot_id = $%d", argID))
		args = append(args, *filter.LotID)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM parking_sessions` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ParkingSessionRepository.Find (count): %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions` + whereClause +
		fmt.Sprintf(" ORDER BY entry_time DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ParkingSessionRepository.Find: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ParkingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ParkingSessionRepository.Find (scanning row): %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ParkingSessionRepository.Find (rows error): %w", err)
	}
	return sessions, total, nil
}
