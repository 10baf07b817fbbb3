package domain

import (
	"encoding/json"
	"time"
)

// Tên các event real-time đẩy qua WebSocket. vehicle-entered/vehicle-exited/
// barrier-updated scoped theo từng bãi; phần còn lại là telemetry toàn cục.
const (
	EventVehicleEntered        = "vehicle-entered"
	EventVehicleExited         = "vehicle-exited"
	EventBarrierUpdated        = "barrier-updated"
	EventRFIDDataReceived      = "rfid-data-received"
	EventALPRDetection         = "alpr-detection-completed"
	EventParkingEntryCompleted = "parking-entry-completed"
)

type VehicleEnteredEvent struct {
	SessionID           string    `json:"sessionId"`
	LicensePlate        string    `json:"licensePlate"`
	IsRegisteredVehicle bool      `json:"isRegisteredVehicle"`
	EntryTime           time.Time `json:"entryTime"`
	AvailableSpaces     int       `json:"availableSpaces"`
}

type VehicleExitedEvent struct {
	SessionID       string  `json:"sessionId"`
	LicensePlate    string  `json:"licensePlate"`
	Duration        int64   `json:"duration"`
	Fee             float64 `json:"fee"`
	AvailableSpaces int     `json:"availableSpaces"`
}

type BarrierUpdatedEvent struct {
	BarrierID string `json:"barrierId"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type RFIDReceivedEvent struct {
	ReaderID     int    `json:"reader_id"`
	CardID       string `json:"card_id"`
	Timestamp    int64  `json:"timestamp"`
	DeviceID     string `json:"device_id"`
	ParkingLotID int    `json:"parking_lot_id"`
}

type ALPRDetectionEvent struct {
	LicensePlate string  `json:"license_plate"`
	Confidence   float64 `json:"confidence"`
	RFIDCard     string  `json:"rfid_card"`
	ReaderID     int     `json:"reader_id"`
	Timestamp    int64   `json:"timestamp"`
}

type ParkingEntryCompletedEvent struct {
	SessionID           string `json:"sessionId"`
	LicensePlate        string `json:"licensePlate"`
	IsRegisteredVehicle bool   `json:"isRegisteredVehicle"`
	ShouldOpenBarrier   bool   `json:"shouldOpenBarrier"`
	RFIDCard            string `json:"rfid_card"`
}

// --- Sự kiện thiết bị nhận qua SQS (AWS IoT rule đẩy xuống queue) ---

// GenericDeviceEvent dùng để parse bước đầu, lấy message_type
type GenericDeviceEvent struct {
	DeviceID    string          `json:"device_id"`
	MessageType string          `json:"message_type"`
	Timestamp   string          `json:"timestamp"` // ISO 8601 UTC string từ thiết bị
	RawPayload  json.RawMessage `json:"-"`
}

// DeviceRFIDScanEvent: thiết bị quẹt thẻ kèm ảnh chụp tại cổng; đi vào
// cùng pipeline với POST /api/iot/rfid-alpr-integration.
type DeviceRFIDScanEvent struct {
	GenericDeviceEvent
	ReaderID     int    `json:"reader_id"`
	CardID       string `json:"card_id"`
	ParkingLotID int    `json:"parking_lot_id"`
	BarrierID    string `json:"barrier_id"`
	EntryImage   string `json:"entry_image,omitempty"` // base64, có thể rỗng nếu camera lỗi
}

// DeviceBarrierStateEvent: rào chắn tự báo trạng thái sau khi đóng/mở
type DeviceBarrierStateEvent struct {
	GenericDeviceEvent
	ParkingLotID int    `json:"parking_lot_id"`
	BarrierID    string `json:"barrier_id"`
	State        string `json:"state"` // "open" hoặc "closed"
}
