package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

// Các loại xe được hỗ trợ, khớp với hệ số nhân giá trong pricing.
const (
	VehicleTypeCar        = "car"
	VehicleTypeMotorcycle = "motorcycle"
	VehicleTypeTruck      = "truck"
	VehicleTypeBus        = "bus"
)

// Vehicle là bản ghi đăng ký gắn một biển số với một chủ xe.
// Một phiên đỗ xe có thể không tham chiếu xe nào (khách vãng lai).
type Vehicle struct {
	ID               int       `json:"id"`
	LicensePlate     string    `json:"licensePlate"` // Unique, viết hoa
	Brand            string    `json:"brand"`
	Model            string    `json:"model"`
	Color            string    `json:"color"`
	VehicleType      string    `json:"vehicleType"` // "car", "motorcycle", "truck", "bus"
	OwnerID          int       `json:"ownerId"`
	IsActive         bool      `json:"isActive"`
	TotalParkingTime int64     `json:"totalParkingTime"` // Tổng phút đã gửi, thống kê best-effort
	TotalFees        float64   `json:"totalFees"`
	LastSessionID    null.Int  `json:"lastSessionId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
