package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/pricing"
	"parking_system_go/internal/repository"
)

var ErrInvalidInput = errors.New("dữ liệu đầu vào không hợp lệ")
var ErrLotNotFound = errors.New("bãi đỗ xe không tồn tại hoặc đã đóng")
var ErrLotInactive = errors.New("bãi đỗ xe đang ngừng hoạt động")
var ErrLotFull = errors.New("bãi đỗ xe đã hết chỗ")

// EventBroadcaster đẩy sự kiện realtime tới dashboard. Gửi event là
// best-effort: lỗi broadcast không bao giờ làm hỏng giao dịch vào/ra.
type EventBroadcaster interface {
	Broadcast(event string, data interface{})
	BroadcastToLot(lotID int, event string, data interface{})
}

// BarrierActuator gửi lệnh đóng/mở rào chắn xuống thiết bị vật lý.
type BarrierActuator interface {
	SendBarrierControlCommand(ctx context.Context, lotID int, barrierID string, action string) error
}

// LotStatusDTO là snapshot trạng thái một bãi cho dashboard vận hành.
type LotStatusDTO struct {
	ParkingLot     *domain.ParkingLot      `json:"parkingLot"`
	ActiveSessions int                     `json:"activeSessions"`
	OccupancyRate  float64                 `json:"occupancyRate"`
	Sessions       []domain.ParkingSession `json:"sessions"`
}

type ParkingService struct {
	lotRepo     repository.ParkingLotRepository
	sessionRepo repository.ParkingSessionRepository
	vehicleRepo repository.VehicleRepository
	userRepo    repository.UserRepository
	broadcaster EventBroadcaster
	actuator    BarrierActuator
}

func NewParkingService(
	lotRepo repository.ParkingLotRepository,
	sessionRepo repository.ParkingSessionRepository,
	vehicleRepo repository.VehicleRepository,
	userRepo repository.UserRepository,
	broadcaster EventBroadcaster,
	actuator BarrierActuator,
) *ParkingService {
	return &ParkingService{
		lotRepo:     lotRepo,
		sessionRepo: sessionRepo,
		vehicleRepo: vehicleRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		actuator:    actuator,
	}
}

// newSessionID sinh định danh phiên dạng "PS" + 12 ký tự hex.
func newSessionID() string {
	return "PS" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// newTempTicketNumber sinh số vé tạm cho khách vãng lai.
func newTempTicketNumber() string {
	return fmt.Sprintf("TEMP%d", time.Now().UnixMilli())
}

// VehicleEntry ghi nhận xe vào bãi. Trả về phiên mới tạo và cờ
// shouldOpenBarrier: xe đã đăng ký thì mở rào tự động, khách vãng lai
// nhận vé tạm và chờ vận hành viên xác nhận.
func (s *ParkingService) VehicleEntry(ctx context.Context, dto domain.VehicleEntryDTO) (*domain.ParkingSession, bool, error) {
	plate := pricing.NormalizePlate(dto.LicensePlate)
	if plate == "" {
		return nil, false, fmt.Errorf("%w: thiếu biển số", ErrInvalidInput)
	}
	log.Printf("Service: Xe vào bãi: LotID=%d, Biển số='%s', Barrier='%s'", dto.ParkingLotID, plate, dto.BarrierID)

	lot, err := s.lotRepo.FindByID(ctx, dto.ParkingLotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: ID %d", ErrLotNotFound, dto.ParkingLotID)
		}
		return nil, false, fmt.Errorf("lỗi khi kiểm tra bãi đỗ xe: %w", err)
	}
	if !lot.IsActive {
		return nil, false, ErrLotInactive
	}
	if lot.AvailableSpaces <= 0 {
		return nil, false, ErrLotFull
	}

	// Xe đã đăng ký thì gắn phiên với chủ xe, khách vãng lai tạo vé tạm.
	isRegistered := false
	var vehicleID, userID null.Int
	vehicle, err := s.vehicleRepo.FindByPlate(ctx, plate)
	if err == nil {
		isRegistered = true
		vehicleID = null.IntFrom(int64(vehicle.ID))
		userID = null.IntFrom(int64(vehicle.OwnerID))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lỗi tra cứu xe đăng ký: %w", err)
	}

	session := &domain.ParkingSession{
		SessionID:            newSessionID(),
		LotID:                dto.ParkingLotID,
		VehicleID:            vehicleID,
		UserID:               userID,
		DetectedLicensePlate: plate,
		EntryTime:            time.Now().UTC(),
		PaymentStatus:        domain.PaymentPending,
		BarrierEntry:         dto.BarrierID,
		EntryImage:           dto.EntryImage,
		Status:               domain.SessionActive,
		IsRegisteredVehicle:  isRegistered,
	}
	if !isRegistered {
		session.TempTicketNumber = null.StringFrom(newTempTicketNumber())
	}
	if dto.RFIDCardID != "" {
		session.RFIDCardID = null.StringFrom(dto.RFIDCardID)
	}
	if dto.DetectionConfidence > 0 {
		session.DetectionConfidence = null.FloatFrom(dto.DetectionConfidence)
	}

	createdSession, err := s.sessionRepo.Create(ctx, session)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveSession) {
			log.Printf("Xe '%s' đã có phiên đang hoạt động, từ chối tạo phiên mới.", plate)
			return nil, false, repository.ErrDuplicateActiveSession
		}
		return nil, false, fmt.Errorf("lỗi tạo phiên đỗ xe: %w", err)
	}

	available := s.refreshCapacity(ctx, dto.ParkingLotID, lot.AvailableSpaces-1)

	shouldOpen := isRegistered
	if shouldOpen && s.actuator != nil {
		if err := s.actuator.SendBarrierControlCommand(ctx, dto.ParkingLotID, dto.BarrierID, "open"); err != nil {
			log.Printf("Lỗi gửi lệnh mở rào chắn '%s' bãi %d: %v", dto.BarrierID, dto.ParkingLotID, err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToLot(dto.ParkingLotID, domain.EventVehicleEntered, domain.VehicleEnteredEvent{
			SessionID:           createdSession.SessionID,
			LicensePlate:        plate,
			IsRegisteredVehicle: isRegistered,
			EntryTime:           createdSession.EntryTime,
			AvailableSpaces:     available,
		})
	}

	log.Printf("Đã tạo phiên đỗ xe '%s' cho xe '%s' tại bãi %d (đăng ký: %t)", createdSession.SessionID, plate, dto.ParkingLotID, isRegistered)
	return createdSession, shouldOpen, nil
}

// VehicleExit đóng phiên của xe, tính phí và mở rào ra. Gọi lại lần hai
// với cùng barrier ra thì trả về phiên đã đóng thay vì báo lỗi, để thiết
// bị retry an toàn.
func (s *ParkingService) VehicleExit(ctx context.Context, dto domain.VehicleExitDTO) (*domain.ParkingSession, *pricing.FeeBreakdown, error) {
	plate := pricing.NormalizePlate(dto.LicensePlate)
	if plate == "" {
		return nil, nil, fmt.Errorf("%w: thiếu biển số", ErrInvalidInput)
	}
	log.Printf("Service: Xe ra bãi: LotID=%d, Biển số='%s', Barrier='%s'", dto.ParkingLotID, plate, dto.BarrierID)

	session, err := s.sessionRepo.FindActiveByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, nil, repository.ErrNoActiveSession
		}
		return nil, nil, fmt.Errorf("lỗi tìm phiên đỗ xe đang hoạt động: %w", err)
	}

	lot, err := s.lotRepo.FindByID(ctx, session.LotID)
	if err != nil {
		return nil, nil, fmt.Errorf("lỗi khi kiểm tra bãi đỗ xe: %w", err)
	}

	exitTime := time.Now().UTC()
	if exitTime.Before(session.EntryTime) {
		exitTime = session.EntryTime
	}
	durationMinutes := int64(math.Ceil(exitTime.Sub(session.EntryTime).Minutes()))

	vehicleType := domain.VehicleTypeCar
	var vehicle *domain.Vehicle
	if session.VehicleID.Valid {
		if v, vErr := s.vehicleRepo.FindByPlate(ctx, plate); vErr == nil {
			vehicle = v
			vehicleType = v.VehicleType
		}
	}
	var user *domain.User
	if session.UserID.Valid {
		if u, uErr := s.userRepo.FindByID(ctx, int(session.UserID.Int64)); uErr == nil {
			user = u
		}
	}

	session.ExitTime = null.TimeFrom(exitTime)
	session.DurationMinutes = null.IntFrom(durationMinutes)

	breakdown := pricing.CalculateTotalFee(session, lot, vehicleType, user)
	session.Fee = breakdown.Fee
	session.HourlyRate = breakdown.HourlyRate
	session.DailyRate = breakdown.DailyRate
	session.LateFee = breakdown.LateFee
	session.DiscountAmount = breakdown.DiscountAmount
	if breakdown.DiscountReason != "" {
		session.DiscountReason = null.StringFrom(breakdown.DiscountReason)
	}
	session.TotalAmount = breakdown.TotalAmount
	session.BarrierExit = null.StringFrom(dto.BarrierID)
	session.ExitImage = null.StringFrom(dto.ExitImage)

	closedSession, err := s.sessionRepo.Close(ctx, session)
	if err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyClosed) {
			// Request trùng (thiết bị retry): trả lại kết quả đã lưu nếu
			// cùng một rào ra, ngược lại coi là lỗi thật.
			stored, findErr := s.sessionRepo.FindBySessionID(ctx, session.SessionID)
			if findErr == nil && stored.BarrierExit.Valid && stored.BarrierExit.String == dto.BarrierID {
				log.Printf("Phiên '%s' đã đóng trước đó bởi cùng rào '%s', trả lại kết quả đã lưu.", session.SessionID, dto.BarrierID)
				return stored, storedBreakdown(stored), nil
			}
			return nil, nil, repository.ErrSessionAlreadyClosed
		}
		return nil, nil, fmt.Errorf("lỗi đóng phiên đỗ xe: %w", err)
	}

	// Các bước sau đều best-effort: phiên đã đóng thành công là kết quả
	// chính, thống kê và sự kiện realtime không được làm hỏng nó.
	if vehicle != nil {
		if err := s.vehicleRepo.UpdateUsageStats(ctx, vehicle.ID, durationMinutes, breakdown.TotalAmount, closedSession.ID); err != nil {
			log.Printf("Lỗi cập nhật thống kê xe %d: %v", vehicle.ID, err)
		}
	}
	available := s.refreshCapacity(ctx, session.LotID, lot.AvailableSpaces+1)

	if s.actuator != nil {
		if err := s.actuator.SendBarrierControlCommand(ctx, session.LotID, dto.BarrierID, "open"); err != nil {
			log.Printf("Lỗi gửi lệnh mở rào chắn ra '%s' bãi %d: %v", dto.BarrierID, session.LotID, err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToLot(session.LotID, domain.EventVehicleExited, domain.VehicleExitedEvent{
			SessionID:       closedSession.SessionID,
			LicensePlate:    plate,
			Duration:        durationMinutes,
			Fee:             breakdown.TotalAmount,
			AvailableSpaces: available,
		})
	}

	log.Printf("Đã đóng phiên '%s' cho xe '%s'. Thời gian đỗ: %d phút. Tổng phí: %.0f", closedSession.SessionID, plate, durationMinutes, breakdown.TotalAmount)
	return closedSession, &breakdown, nil
}

// storedBreakdown dựng lại kết quả tính phí từ các cột đã lưu của một
// phiên đóng trước đó.
func storedBreakdown(session *domain.ParkingSession) *pricing.FeeBreakdown {
	return &pricing.FeeBreakdown{
		Fee:            session.Fee,
		HourlyRate:     session.HourlyRate,
		DailyRate:      session.DailyRate,
		LateFee:        session.LateFee,
		DiscountAmount: session.DiscountAmount,
		DiscountReason: session.DiscountReason.ValueOrZero(),
		TotalAmount:    session.TotalAmount,
		Breakdown: pricing.Breakdown{
			BasicFee: session.Fee,
			LateFee:  session.LateFee,
			Discount: session.DiscountAmount,
			Total:    session.TotalAmount,
		},
	}
}

// refreshCapacity tính lại chỗ trống từ DB. Thất bại thì dùng giá trị
// ước lượng và chỉ log, chu kỳ refresh nền sẽ tự sửa lại sau.
func (s *ParkingService) refreshCapacity(ctx context.Context, lotID int, estimate int) int {
	available, err := s.lotRepo.RefreshAvailableSpaces(ctx, lotID)
	if err != nil {
		log.Printf("Lỗi tính lại chỗ trống bãi %d: %v", lotID, err)
		if estimate < 0 {
			estimate = 0
		}
		return estimate
	}
	return available
}

func (s *ParkingService) GetActiveSessions(ctx context.Context, lotID int) ([]domain.ParkingSession, error) {
	return s.sessionRepo.ListActive(ctx, lotID)
}

func (s *ParkingService) FindParkingSessions(ctx context.Context, filter domain.ParkingSessionFilterDTO) ([]domain.ParkingSession, int, error) {
	return s.sessionRepo.Find(ctx, filter)
}

func (s *ParkingService) GetSessionBySessionID(ctx context.Context, sessionID string) (*domain.ParkingSession, error) {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if lot, lotErr := s.lotRepo.FindByID(ctx, session.LotID); lotErr == nil {
		session.ParkingLot = lot
	}
	return session, nil
}

// GetLotStatus trả về snapshot bãi đỗ cho dashboard: thông tin bãi, số
// phiên đang hoạt động và tỷ lệ lấp đầy.
func (s *ParkingService) GetLotStatus(ctx context.Context, lotID int) (*LotStatusDTO, error) {
	lot, err := s.lotRepo.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.ListActive(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("lỗi lấy danh sách phiên đang hoạt động: %w", err)
	}
	return &LotStatusDTO{
		ParkingLot:     lot,
		ActiveSessions: len(sessions),
		OccupancyRate:  lot.OccupancyRate(),
		Sessions:       sessions,
	}, nil
}

// BarrierControl xử lý lệnh đóng/mở rào thủ công: gửi lệnh xuống thiết
// bị, lưu trạng thái mới và phát sự kiện cho dashboard.
func (s *ParkingService) BarrierControl(ctx context.Context, dto domain.BarrierControlDTO) (*domain.ParkingLot, error) {
	log.Printf("Service: Lệnh điều khiển rào chắn: LotID=%d, Barrier='%s', Action='%s'", dto.ParkingLotID, dto.BarrierID, dto.Action)

	if s.actuator != nil {
		if err := s.actuator.SendBarrierControlCommand(ctx, dto.ParkingLotID, dto.BarrierID, dto.Action); err != nil {
			return nil, fmt.Errorf("lỗi gửi lệnh điều khiển rào chắn: %w", err)
		}
	}

	status := domain.BarrierClosed
	if dto.Action == "open" {
		status = domain.BarrierOpen
	}
	lot, err := s.lotRepo.UpdateBarrierStatus(ctx, dto.ParkingLotID, dto.BarrierID, status)
	if err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToLot(dto.ParkingLotID, domain.EventBarrierUpdated, domain.BarrierUpdatedEvent{
			BarrierID: dto.BarrierID,
			Action:    dto.Action,
			Status:    string(status),
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return lot, nil
}

func (s *ParkingService) UpdateCameraStatus(ctx context.Context, dto domain.CameraStatusDTO) (*domain.ParkingLot, error) {
	isActive := true
	if dto.IsActive != nil {
		isActive = *dto.IsActive
	}
	return s.lotRepo.UpdateCameraStatus(ctx, dto.ParkingLotID, dto.CameraID, isActive, dto.LastMaintenance)
}

// --- ParkingLot CRUD ---

func (s *ParkingService) CreateParkingLot(ctx context.Context, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot := &domain.ParkingLot{
		Name:        dto.Name,
		Address:     dto.Address,
		TotalSpaces: dto.TotalSpaces,
		HourlyRate:  dto.HourlyRate,
		DailyRate:   dto.DailyRate,
		MonthlyRate: dto.MonthlyRate,
		Barriers:    dto.Barriers,
		Cameras:     dto.Cameras,
	}
	return s.lotRepo.Create(ctx, lot)
}

func (s *ParkingService) GetParkingLotByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return s.lotRepo.FindByID(ctx, id)
}

func (s *ParkingService) GetAllParkingLots(ctx context.Context) ([]domain.ParkingLot, error) {
	return s.lotRepo.FindAll(ctx)
}

func (s *ParkingService) UpdateParkingLot(ctx context.Context, id int, dto domain.ParkingLotDTO) (*domain.ParkingLot, error) {
	lot, err := s.lotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lot.Name = dto.Name
	lot.Address = dto.Address
	lot.TotalSpaces = dto.TotalSpaces
	lot.HourlyRate = dto.HourlyRate
	lot.DailyRate = dto.DailyRate
	lot.MonthlyRate = dto.MonthlyRate
	if dto.Barriers != nil {
		lot.Barriers = dto.Barriers
	}
	if dto.Cameras != nil {
		lot.Cameras = dto.Cameras
	}
	return s.lotRepo.Update(ctx, lot)
}

// RefreshAllLots tính lại chỗ trống cho mọi bãi. Chạy định kỳ từ job
// nền để sửa sai lệch tích luỹ khi có broadcast hoặc update lỗi.
func (s *ParkingService) RefreshAllLots(ctx context.Context) {
	lots, err := s.lotRepo.FindAll(ctx)
	if err != nil {
		log.Printf("Lỗi lấy danh sách bãi đỗ để refresh: %v", err)
		return
	}
	for _, lot := range lots {
		if _, err := s.lotRepo.RefreshAvailableSpaces(ctx, lot.ID); err != nil {
			log.Printf("Lỗi tính lại chỗ trống bãi %d: %v", lot.ID, err)
		}
	}
}

// HandleDeviceBarrierState cập nhật trạng thái rào khi thiết bị tự báo
// về qua SQS (ví dụ rào tự đóng sau khi xe qua).
func (s *ParkingService) HandleDeviceBarrierState(ctx context.Context, event domain.DeviceBarrierStateEvent) error {
	status := domain.BarrierStatus(event.State)
	if status != domain.BarrierOpen && status != domain.BarrierClosed && status != domain.BarrierMaintenance {
		return fmt.Errorf("%w: trạng thái rào chắn '%s' không hợp lệ", ErrInvalidInput, event.State)
	}
	_, err := s.lotRepo.UpdateBarrierStatus(ctx, event.ParkingLotID, event.BarrierID, status)
	if err != nil {
		return fmt.Errorf("lỗi cập nhật trạng thái rào chắn từ thiết bị: %w", err)
	}
	if s.broadcaster != nil {
		// Suy ra hành động từ trạng thái thiết bị báo về. Trạng thái
		// maintenance không tương ứng lệnh open/close nên để trống.
		var action string
		switch status {
		case domain.BarrierOpen:
			action = "open"
		case domain.BarrierClosed:
			action = "close"
		}
		s.broadcaster.BroadcastToLot(event.ParkingLotID, domain.EventBarrierUpdated, domain.BarrierUpdatedEvent{
			BarrierID: event.BarrierID,
			Action:    action,
			Status:    event.State,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return nil
}
