package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

type pgRFIDRepository struct {
	db *sql.DB
}

func NewPgRFIDRepository(db *sql.DB) repository.RFIDRepository {
	return &pgRFIDRepository{db: db}
}

func (r *pgRFIDRepository) Create(ctx context.Context, data *domain.RFIDData) (*domain.RFIDData, error) {
	query := `INSERT INTO rfid_data (reader_id, card_id, timestamp, device_id, parking_lot_id, created_at)
	           VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
	           RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		data.ReaderID, data.CardID, data.Timestamp, data.DeviceID, data.ParkingLotID,
	).Scan(&data.ID, &data.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("RFIDRepository.Create: %w", err)
	}
	data.CreatedAt = data.CreatedAt.In(time.UTC)
	return data, nil
}

func (r *pgRFIDRepository) Find(ctx context.Context, filter domain.RFIDFilterDTO) ([]domain.RFIDData, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if filter.ReaderID != nil {
		conditions = append(conditions, fmt.Sprintf("reader_id = $%d", argID))
		args = append(args, *filter.ReaderID)
		argID++
	}
	if filter.ParkingLotID != nil {
		conditions = append(conditions, fmt.Sprintf("parking_lot_id = $%d", argID))
		args = append(args, *filter.ParkingLotID)
		argID++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM rfid_data` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("RFIDRepository.Find (count): %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	query := `SELECT id, reader_id, card_id, timestamp, device_id, parking_lot_id, created_at
	           FROM rfid_data` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("RFIDRepository.Find: %w", err)
	}
	defer rows.Close()

	var records []domain.RFIDData
	for rows.Next() {
		var data domain.RFIDData
		if err := rows.Scan(
			&data.ID, &data.ReaderID, &data.CardID, &data.Timestamp,
			&data.DeviceID, &data.ParkingLotID, &data.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("RFIDRepository.Find (scanning row): %w", err)
		}
		data.CreatedAt = data.CreatedAt.In(time.UTC)
		records = append(records, data)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("RFIDRepository.Find (rows error): %w", err)
	}
	return records, total, nil
}

func (r *pgRFIDRepository) StatsByDay(ctx context.Context, days int) ([]domain.RFIDReaderDayStats, error) {
	if days < 1 {
		days = 7
	}
	query := `SELECT TO_CHAR(created_at::date, 'YYYY-MM-DD') AS day, reader_id,
	                 COUNT(*) AS scan_count, COUNT(DISTINCT card_id) AS unique_cards
	           FROM rfid_data
	           WHERE created_at >= CURRENT_TIMESTAMP - ($1 || ' days')::interval
	           GROUP BY day, reader_id
	           ORDER BY day DESC, reader_id`

	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("RFIDRepository.StatsByDay: %w", err)
	}
	defer rows.Close()

	var stats []domain.RFIDReaderDayStats
	for rows.Next() {
		var s domain.RFIDReaderDayStats
		if err := rows.Scan(&s.Date, &s.ReaderID, &s.Count, &s.UniqueCards); err != nil {
			return nil, fmt.Errorf("RFIDRepository.StatsByDay (scanning row): %w", err)
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("RFIDRepository.StatsByDay (rows error): %w", err)
	}
	return stats, nil
}

func (r *pgRFIDRepository) HealthCounts(ctx context.Context, minutes int) (map[int]int, error) {
	if minutes < 1 {
		minutes = 60
	}
	query := `SELECT reader_id, COUNT(*)
	           FROM rfid_data
	           WHERE created_at >= CURRENT_TIMESTAMP - ($1 || ' minutes')::interval
	           GROUP BY reader_id`

	rows, err := r.db.QueryContext(ctx, query, minutes)
	if err != nil {
		return nil, fmt.Errorf("RFIDRepository.HealthCounts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var readerID, count int
		if err := rows.Scan(&readerID, &count); err != nil {
			return nil, fmt.Errorf("RFIDRepository.HealthCounts (scanning row): %w", err)
		}
		counts[readerID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("RFIDRepository.HealthCounts (rows error): %w", err)
	}
	return counts, nil
}
