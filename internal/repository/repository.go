package repository

import (
	"context"
	"errors"

	"parking_system_go/internal/domain"
)

var ErrNotFound = errors.New("không tìm thấy bản ghi")
var ErrDuplicateActiveSession = errors.New("xe đang có phiên đỗ active, không thể tạo phiên mới")
var ErrNoActiveSession = errors.New("không tìm thấy phiên đỗ xe đang hoạt động cho thông tin cung cấp")
var ErrSessionAlreadyClosed = errors.New("phiên đỗ xe đã được đóng trước đó")

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type ParkingLotRepository interface {
	Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	FindByID(ctx context.Context, id int) (*domain.ParkingLot, error)
	FindAll(ctx context.Context) ([]domain.ParkingLot, error)
	Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error)
	// RefreshAvailableSpaces tính lại chỗ trống từ số phiên active và trả
	// về giá trị mới.
	RefreshAvailableSpaces(ctx context.Context, lotID int) (int, error)
	UpdateBarrierStatus(ctx context.Context, lotID int, barrierID string, status domain.BarrierStatus) (*domain.ParkingLot, error)
	UpdateCameraStatus(ctx context.Context, lotID int, cameraID string, isActive bool, lastMaintenance *string) (*domain.ParkingLot, error)
}

type VehicleRepository interface {
	FindByPlate(ctx context.Context, licensePlate string) (*domain.Vehicle, error)
	// UpdateUsageStats cộng dồn thời gian đỗ và phí sau mỗi lần xe ra.
	UpdateUsageStats(ctx context.Context, vehicleID int, durationMinutes int64, fee float64, lastSessionID int) error
}

type ParkingSessionRepository interface {
	Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error)
	FindBySessionID(ctx context.Context, sessionID string) (*domain.ParkingSession, error)
	FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.ParkingSession, error)
	// Close ghi kết quả tính phí và chuyển phiên sang completed. Chỉ phiên
	// đang active mới đóng được, phiên đã đóng trả ErrSessionAlreadyClosed.
	Close(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error)
	// ListActive trả về các phiên active của một bãi, lotID = 0 là tất cả.
	ListActive(ctx context.Context, lotID int) ([]domain.ParkingSession, error)
	Find(ctx context.Context, filter domain.ParkingSessionFilterDTO) ([]domain.ParkingSession, int, error)
}

type RFIDRepository interface {
	Create(ctx context.Context, data *domain.RFIDData) (*domain.RFIDData, error)
	Find(ctx context.Context, filter domain.RFIDFilterDTO) ([]domain.RFIDData, int, error)
	// StatsByDay gom số lượt quẹt và số thẻ khác nhau theo ngày và đầu đọc.
	StatsByDay(ctx context.Context, days int) ([]domain.RFIDReaderDayStats, error)
	// HealthCounts trả về số lượt quẹt trong N phút gần nhất theo đầu đọc.
	HealthCounts(ctx context.Context, minutes int) (map[int]int, error)
}
