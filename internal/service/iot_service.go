package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"

	"parking_system_go/internal/alpr"
	"parking_system_go/internal/config"
	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

// PlateDetector trừu tượng hóa dịch vụ nhận dạng biển số để test được
// mà không cần dịch vụ thật.
type PlateDetector interface {
	DetectPlate(ctx context.Context, imageData []byte, parkingLotID int, barrierID string) (*alpr.Result, error)
}

// RFIDALPRResult là kết quả của pipeline quẹt thẻ + nhận dạng biển số.
// RFIDData luôn có giá trị (được lưu trước mọi bước khác); các trường
// còn lại tùy vào pipeline đi được đến đâu.
type RFIDALPRResult struct {
	RFIDData          *domain.RFIDData       `json:"rfid_data"`
	Recognition       *alpr.Result           `json:"alpr_result,omitempty"`
	Session           *domain.ParkingSession `json:"parking_session,omitempty"`
	ShouldOpenBarrier bool                   `json:"should_open_barrier"`
	Message           string                 `json:"message"`

	// Failure giữ sentinel của bước thất bại để tầng HTTP chọn status
	// code. Nil khi pipeline chạy trọn vẹn.
	Failure error `json:"-"`
}

type IoTService struct {
	parkingService *ParkingService
	rfidRepo       repository.RFIDRepository
	detector       PlateDetector
	broadcaster    EventBroadcaster
	cfg            *config.Config
}

func NewIoTService(
	ps *ParkingService,
	rfidRepo repository.RFIDRepository,
	detector PlateDetector,
	broadcaster EventBroadcaster,
	cfg *config.Config,
) *IoTService {
	return &IoTService{
		parkingService: ps,
		rfidRepo:       rfidRepo,
		detector:       detector,
		broadcaster:    broadcaster,
		cfg:            cfg,
	}
}

// SaveRFIDData lưu một lần quẹt thẻ đơn thuần (không kèm ảnh) và phát
// sự kiện telemetry toàn cục.
func (s *IoTService) SaveRFIDData(ctx context.Context, dto domain.RFIDDataDTO) (*domain.RFIDData, error) {
	data := &domain.RFIDData{
		ReaderID:  dto.ReaderID,
		CardID:    dto.CardID,
		Timestamp: dto.Timestamp,
		DeviceID:  dto.DeviceID,
	}
	if dto.ParkingLotID > 0 {
		data.ParkingLotID = null.IntFrom(int64(dto.ParkingLotID))
	}

	saved, err := s.rfidRepo.Create(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("lỗi lưu dữ liệu RFID: %w", err)
	}
	log.Printf("IoTService: Đã lưu RFID scan: Reader=%d, Card='%s', Device='%s'", dto.ReaderID, dto.CardID, dto.DeviceID)

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(domain.EventRFIDDataReceived, domain.RFIDReceivedEvent{
			ReaderID:     dto.ReaderID,
			CardID:       dto.CardID,
			Timestamp:    dto.Timestamp,
			DeviceID:     dto.DeviceID,
			ParkingLotID: dto.ParkingLotID,
		})
	}
	return saved, nil
}

// decodeEntryImage giải mã ảnh base64 từ thiết bị, chấp nhận cả dạng
// data URL "data:image/jpeg;base64,...".
func decodeEntryImage(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// ProcessRFIDEntry chạy pipeline thẻ + ảnh của cổng vào: lưu bản ghi
// RFID TRƯỚC (audit trail không bao giờ mất), rồi nhận dạng biển số,
// rồi tạo phiên đỗ xe. Lỗi ở bước sau không hủy kết quả bước trước:
// nhận dạng thất bại vẫn trả về bản ghi RFID đã lưu để vận hành viên
// xử lý thủ công.
func (s *IoTService) ProcessRFIDEntry(ctx context.Context, dto domain.RFIDALPRIntegrationDTO) (*RFIDALPRResult, error) {
	log.Printf("IoTService: Pipeline RFID+ALPR: Reader=%d, Card='%s', LotID=%d", dto.ReaderID, dto.CardID, dto.ParkingLotID)

	savedRFID, err := s.SaveRFIDData(ctx, domain.RFIDDataDTO{
		ReaderID:     dto.ReaderID,
		CardID:       dto.CardID,
		Timestamp:    time.Now().UnixMilli(),
		DeviceID:     dto.DeviceID,
		ParkingLotID: dto.ParkingLotID,
	})
	if err != nil {
		return nil, err
	}
	result := &RFIDALPRResult{RFIDData: savedRFID}

	imageData, err := decodeEntryImage(dto.EntryImage)
	if err != nil {
		log.Printf("IoTService: Ảnh cổng vào không giải mã được: %v", err)
		result.Message = "Dữ liệu RFID đã lưu, ảnh cổng vào không hợp lệ"
		result.Failure = err
		return result, nil
	}

	recognition, err := s.detector.DetectPlate(ctx, imageData, dto.ParkingLotID, dto.BarrierID)
	if err != nil {
		switch {
		case errors.Is(err, alpr.ErrRecognitionUnavailable):
			log.Printf("IoTService: Dịch vụ nhận dạng không khả dụng, RFID đã lưu, chờ xử lý thủ công.")
			result.Message = "Dữ liệu RFID đã lưu, dịch vụ nhận dạng biển số không khả dụng"
		case errors.Is(err, alpr.ErrNoPlateFound):
			log.Printf("IoTService: Không phát hiện biển số trong ảnh, RFID đã lưu.")
			result.Message = "Dữ liệu RFID đã lưu, không phát hiện được biển số trong ảnh"
		default:
			log.Printf("IoTService: Lỗi nhận dạng biển số: %v", err)
			result.Message = "Dữ liệu RFID đã lưu, nhận dạng biển số thất bại"
		}
		result.Failure = err
		return result, nil
	}
	result.Recognition = recognition

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToLot(dto.ParkingLotID, domain.EventALPRDetection, domain.ALPRDetectionEvent{
			LicensePlate: recognition.LicensePlate,
			Confidence:   recognition.Confidence,
			RFIDCard:     dto.CardID,
			ReaderID:     dto.ReaderID,
			Timestamp:    time.Now().UnixMilli(),
		})
	}

	session, shouldOpen, err := s.parkingService.VehicleEntry(ctx, domain.VehicleEntryDTO{
		LicensePlate:        recognition.LicensePlate,
		ParkingLotID:        dto.ParkingLotID,
		EntryImage:          dto.EntryImage,
		BarrierID:           dto.BarrierID,
		DetectionConfidence: recognition.Confidence,
		RFIDCardID:          dto.CardID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveSession) {
			result.Message = fmt.Sprintf("Xe '%s' đã có phiên đang hoạt động", recognition.LicensePlate)
			result.Failure = err
			return result, nil
		}
		log.Printf("IoTService: Lỗi tạo phiên từ pipeline RFID+ALPR: %v", err)
		result.Message = "Nhận dạng thành công nhưng tạo phiên đỗ xe thất bại"
		result.Failure = err
		return result, nil
	}

	result.Session = session
	result.ShouldOpenBarrier = shouldOpen

	// Kết quả degraded hoặc độ tin cậy dưới ngưỡng cấu hình thì phiên
	// vẫn được tạo nhưng đánh dấu để vận hành viên kiểm tra lại.
	lowConfidence := recognition.Degraded ||
		(s.cfg != nil && s.cfg.LPRConfidenceThreshold > 0 && recognition.Confidence < s.cfg.LPRConfidenceThreshold)
	if lowConfidence {
		log.Printf("IoTService: Độ tin cậy nhận dạng thấp (%.2f) cho phiên '%s', cần kiểm tra lại", recognition.Confidence, session.SessionID)
		result.Message = "Đã tạo phiên đỗ xe (độ tin cậy nhận dạng thấp, cần kiểm tra lại)"
	} else {
		result.Message = "Đã tạo phiên đỗ xe"
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToLot(dto.ParkingLotID, domain.EventParkingEntryCompleted, domain.ParkingEntryCompletedEvent{
			SessionID:           session.SessionID,
			LicensePlate:        session.DetectedLicensePlate,
			IsRegisteredVehicle: session.IsRegisteredVehicle,
			ShouldOpenBarrier:   shouldOpen,
			RFIDCard:            dto.CardID,
		})
	}
	return result, nil
}

func (s *IoTService) GetRFIDData(ctx context.Context, filter domain.RFIDFilterDTO) ([]domain.RFIDData, int, error) {
	return s.rfidRepo.Find(ctx, filter)
}

func (s *IoTService) GetRFIDStats(ctx context.Context, days int) ([]domain.RFIDReaderDayStats, error) {
	return s.rfidRepo.StatsByDay(ctx, days)
}

// RFIDReaderHealth mô tả tình trạng một đầu đọc dựa trên hoạt động gần đây.
type RFIDReaderHealth struct {
	ReaderID   int    `json:"reader_id"`
	ScanCount  int    `json:"scan_count"`
	Status     string `json:"status"` // "healthy" hoặc "idle"
	WindowMins int    `json:"window_minutes"`
}

// GetRFIDHealth đánh giá tình trạng các đầu đọc: đầu đọc không có lượt
// quẹt nào trong cửa sổ quan sát được coi là idle (có thể hỏng hoặc
// đơn giản là vắng xe, cần vận hành viên xác nhận).
func (s *IoTService) GetRFIDHealth(ctx context.Context) ([]RFIDReaderHealth, error) {
	const windowMinutes = 60
	counts, err := s.rfidRepo.HealthCounts(ctx, windowMinutes)
	if err != nil {
		return nil, err
	}

	// Hệ thống có cố định 2 đầu đọc: 1 cổng vào, 2 cổng ra.
	var health []RFIDReaderHealth
	for _, readerID := range []int{1, 2} {
		h := RFIDReaderHealth{ReaderID: readerID, ScanCount: counts[readerID], WindowMins: windowMinutes}
		if h.ScanCount > 0 {
			h.Status = "healthy"
		} else {
			h.Status = "idle"
		}
		health = append(health, h)
	}
	return health, nil
}

// HandleDeviceEvent xử lý một message SQS từ AWS IoT rule: parse bước
// đầu lấy message_type rồi dispatch về đúng pipeline.
func (s *IoTService) HandleDeviceEvent(ctx context.Context, sqsMessageBody string) error {
	log.Printf("IoTService: Xử lý sự kiện từ SQS: %s", sqsMessageBody)

	var genericEvent domain.GenericDeviceEvent
	if err := json.Unmarshal([]byte(sqsMessageBody), &genericEvent); err != nil {
		log.Printf("Lỗi unmarshal generic device event: %v. Body: %s", err, sqsMessageBody)
		return fmt.Errorf("lỗi unmarshal generic device event: %w", err)
	}
	genericEvent.RawPayload = json.RawMessage(sqsMessageBody)

	var processingError error
	switch genericEvent.MessageType {
	case "rfid_scan":
		var event domain.DeviceRFIDScanEvent
		if err := json.Unmarshal(genericEvent.RawPayload, &event); err != nil {
			processingError = fmt.Errorf("lỗi unmarshal rfid_scan event: %w", err)
			break
		}
		event.GenericDeviceEvent = genericEvent
		if event.EntryImage == "" {
			// Không có ảnh thì chỉ lưu lượt quẹt làm audit.
			_, processingError = s.SaveRFIDData(ctx, domain.RFIDDataDTO{
				ReaderID:     event.ReaderID,
				CardID:       event.CardID,
				Timestamp:    time.Now().UnixMilli(),
				DeviceID:     event.DeviceID,
				ParkingLotID: event.ParkingLotID,
			})
			break
		}
		_, processingError = s.ProcessRFIDEntry(ctx, domain.RFIDALPRIntegrationDTO{
			ReaderID:     event.ReaderID,
			CardID:       event.CardID,
			DeviceID:     event.DeviceID,
			ParkingLotID: event.ParkingLotID,
			EntryImage:   event.EntryImage,
			BarrierID:    event.BarrierID,
		})
	case "barrier_state":
		var event domain.DeviceBarrierStateEvent
		if err := json.Unmarshal(genericEvent.RawPayload, &event); err != nil {
			processingError = fmt.Errorf("lỗi unmarshal barrier_state event: %w", err)
			break
		}
		event.GenericDeviceEvent = genericEvent
		processingError = s.parkingService.HandleDeviceBarrierState(ctx, event)
	default:
		log.Printf("IoTService: Loại message không được xử lý: '%s'", genericEvent.MessageType)
	}

	if processingError != nil {
		log.Printf("Lỗi khi xử lý sự kiện loại '%s' (Device: %s): %v", genericEvent.MessageType, genericEvent.DeviceID, processingError)
	}
	return processingError
}
