package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

type ParkingSessionStatus string

const (
	SessionActive    ParkingSessionStatus = "active"
	SessionCompleted ParkingSessionStatus = "completed"
	SessionCancelled ParkingSessionStatus = "cancelled" // Ví dụ: nếu admin hủy
)

// Trạng thái thanh toán của một phiên đỗ xe
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// ParkingSession là một lần gửi xe vật lý của một xe trong một bãi.
// Bất biến: tại mọi thời điểm chỉ có tối đa MỘT phiên status=active cho
// mỗi biển số (enforce bằng partial unique index trong DB, không phải
// bằng read-then-write ở tầng ứng dụng).
type ParkingSession struct {
	ID                    int                  `json:"id"`
	SessionID             string               `json:"sessionId"` // Định danh toàn cục, sinh khi tạo, bất biến
	LotID                 int                  `json:"parkingLotId"`
	VehicleID             null.Int             `json:"vehicleId"` // Null nếu biển số chưa đăng ký
	UserID                null.Int             `json:"userId"`
	DetectedLicensePlate  string               `json:"detectedLicensePlate"` // Đã chuẩn hóa viết hoa
	ConfirmedLicensePlate null.String          `json:"confirmedLicensePlate,omitempty"`
	EntryTime             time.Time            `json:"entryTime"`
	ExitTime              null.Time            `json:"exitTime"`
	ExpectedExitTime      null.Time            `json:"expectedExitTime,omitempty"`
	DurationMinutes       null.Int             `json:"duration"` // Chỉ set khi đóng phiên
	Fee                   float64              `json:"fee"`
	HourlyRate            float64              `json:"hourlyRate"`
	DailyRate             float64              `json:"dailyRate"`
	LateFee               float64              `json:"lateFee"`
	DiscountAmount        float64              `json:"discountAmount"`
	DiscountReason        null.String          `json:"discountReason,omitempty"`
	TotalAmount           float64              `json:"totalAmount"`
	PaymentStatus         string               `json:"paymentStatus"` // "pending", "paid", "failed"
	PaymentMethod         string               `json:"paymentMethod"` // "qr", "cash", "card", "wallet"
	BarrierEntry          string               `json:"barrierEntry"`
	BarrierExit           null.String          `json:"barrierExit,omitempty"`
	EntryImage            string               `json:"entryImage"`
	ExitImage             null.String          `json:"exitImage,omitempty"`
	Status                ParkingSessionStatus `json:"status"`
	IsRegisteredVehicle   bool                 `json:"isRegisteredVehicle"`
	TempTicketNumber      null.String          `json:"tempTicketNumber,omitempty"`
	RFIDCardID            null.String          `json:"rfidCardId,omitempty"`          // Audit trail cho pipeline RFID+ALPR
	DetectionConfidence   null.Float           `json:"detectionConfidence,omitempty"` // Độ tin cậy nhận dạng biển số
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`

	ParkingLot *ParkingLot `json:"parkingLot,omitempty"` // Không map vào DB, dùng để trả về API
}

// DTO cho API xe vào bãi (thiết bị IoT gửi lên)
type VehicleEntryDTO struct {
	LicensePlate        string  `json:"licensePlate" binding:"required"`
	ParkingLotID        int     `json:"parkingLotId" binding:"required"`
	EntryImage          string  `json:"entryImage" binding:"required"`
	BarrierID           string  `json:"barrierId" binding:"required"`
	DetectionConfidence float64 `json:"detectionConfidence,omitempty"`
	RFIDCardID          string  `json:"rfidCardId,omitempty"`
}

// DTO cho API xe ra bãi
type VehicleExitDTO struct {
	LicensePlate string `json:"licensePlate" binding:"required"`
	ParkingLotID int    `json:"parkingLotId" binding:"required"`
	ExitImage    string `json:"exitImage" binding:"required"`
	BarrierID    string `json:"barrierId" binding:"required"`
}

type ParkingSessionFilterDTO struct {
	LotID  *int    `form:"parkingLotId"`
	Status *string `form:"status"`
	Page   int     `form:"page,default=1"`
	Limit  int     `form:"limit,default=10"`
}
